package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/pkg/helper"
	"github.com/kamshory/wsbridge/pkg/utils"
	"github.com/kamshory/wsbridge/pkg/version"

	"github.com/spf13/cobra"
)

var (
	configPath string
	pidFile    string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wsbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cnst.AppName, version.String())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Test the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration %s: %w", path, err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration file %s is invalid: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration file %s test is successful\n", path)
			return nil
		},
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop a running wsbridge gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _ := config.LoadConfig(configPath)
			pm := utils.NewPIDManager(resolvePIDFile(cfg))
			if err := pm.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to stop %s: %w", cnst.AppName, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent stop signal to the process in %s\n", pm.GetPIDFile())
			return nil
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "WebSocket bridge to shared session state",
		Long: `wsbridge accepts WebSocket clients, resolves their identity from the
session record the web application already keeps, and runs a chat, broker or
dashboard application over the connections.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.ConfigYaml, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid", "", "path to PID file (overrides the configured one)")
	rootCmd.AddCommand(versionCmd, testCmd, stopCmd, userCmd)
}

// resolvePIDFile prefers the flag, then the configuration, then the default.
// cfg may be nil.
func resolvePIDFile(cfg *config.Config) string {
	configured := ""
	if cfg != nil {
		configured = cfg.PID
	}
	return helper.GetPIDPath(utils.FirstNonEmpty(pidFile, configured))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
