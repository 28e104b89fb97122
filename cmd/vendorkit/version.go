package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vendorkit/vendorkit/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.Get().String())
	},
}
