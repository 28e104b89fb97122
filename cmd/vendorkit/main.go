package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vendorkit/vendorkit/pkg/api"
	"github.com/vendorkit/vendorkit/pkg/config"
	"github.com/vendorkit/vendorkit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vendorkit",
	Short: "Call vendor cloud APIs from the command line",
	Long: `vendorkit executes single calls against vendor REST APIs, waits on
long-running operations, and runs SQL statement sequences transactionally
over HTTP. Vendors are configured in vendorkit.yaml or via VENDORKIT_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := logger.SetLogLevel(cfg.LogLevel); err != nil {
			return errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
		}
		logger.SetLogFormat(cfg.LogFormat)
		return nil
	},
}

func init() {
	viper.SetEnvPrefix("VENDORKIT")
	viper.AutomaticEnv()

	viper.SetConfigName("vendorkit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.vendorkit")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()

	rootCmd.PersistentFlags().String("vendor", "", "vendor section from the configuration to use")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(versionCmd)
}

// vendorClient builds the request executor for the --vendor flag.
func vendorClient(cmd *cobra.Command) (*api.Client, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	name, err := cmd.Flags().GetString("vendor")
	if err != nil {
		return nil, cfg, err
	}
	if name == "" {
		return nil, cfg, errors.New("--vendor is required")
	}
	vendor, err := cfg.Vendor(name)
	if err != nil {
		return nil, cfg, err
	}
	return api.NewClient(vendor.ClientConfig()), cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var configErr *api.ConfigurationError
		if errors.As(err, &configErr) && configErr.Guidance != "" {
			fmt.Fprintln(os.Stderr, color.RedString("%s", configErr.Message))
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, configErr.Guidance)
		} else {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}
