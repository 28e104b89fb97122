package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/vendorkit/vendorkit/pkg/api"
	"github.com/vendorkit/vendorkit/pkg/params"
)

var callCmd = &cobra.Command{
	Use:   "call <method> <path>",
	Short: "Execute one API call against the configured vendor",
	Long: `Execute one HTTP call. Parameters are supplied with repeated -d flags
using the form-encoded key syntax, so nested and indexed keys work:

  vendorkit call --vendor stripe POST /v1/widgets \
    -d name=foo -d "tags[0]=a" -d "tags[1]=b"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := strings.ToUpper(args[0])
		path := args[1]

		data, err := cmd.Flags().GetStringArray("data")
		if err != nil {
			return err
		}
		tree := params.Tree{}
		if len(data) > 0 {
			tree, err = params.Parse(strings.Join(data, "&"))
			if err != nil {
				return errors.Wrap(err, "invalid -d parameter")
			}
		}

		client, _, err := vendorClient(cmd)
		if err != nil {
			return err
		}

		var opts []api.CallOption
		idempotent, err := cmd.Flags().GetBool("idempotent")
		if err != nil {
			return err
		}
		if idempotent && method != http.MethodGet {
			opts = append(opts, api.WithIdempotencyKey(api.NewIdempotencyKey()))
		}

		resp, err := client.Execute(cmd.Context(), method, path, tree, opts...)
		if err != nil {
			return err
		}
		if len(resp.Body) == 0 {
			fmt.Printf("%d (no content)\n", resp.StatusCode)
			return nil
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, resp.Body, "", "  "); err != nil {
			fmt.Println(string(resp.Body))
			return nil
		}
		fmt.Println(pretty.String())
		return nil
	},
}

func init() {
	callCmd.Flags().StringArrayP("data", "d", nil, "request parameter as key=value (repeatable)")
	callCmd.Flags().Bool("idempotent", false, "attach a generated idempotency key to a mutating call")
}
