package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vendorkit/vendorkit/pkg/sqltx"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <statement> [statement...]",
	Short: "Run SQL statements as one transaction over the vendor's HTTP endpoint",
	Long: `Run the given statements in order inside a BEGIN/COMMIT envelope. If any
statement fails, a rollback is issued and the failing statement's error is
reported; later statements are not sent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := vendorClient(cmd)
		if err != nil {
			return err
		}
		endpoint, err := cmd.Flags().GetString("endpoint")
		if err != nil {
			return err
		}

		runner := &sqltx.Runner{Exec: sqltx.ExecVia(client, endpoint)}
		results, err := runner.RunSequence(cmd.Context(), args)
		if err != nil {
			return err
		}
		for i, result := range results {
			fmt.Printf("-- statement %d\n%s\n", i+1, string(result))
		}
		return nil
	},
}

func init() {
	sqlCmd.Flags().String("endpoint", "/sql", "vendor SQL endpoint path")
}
