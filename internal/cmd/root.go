// Package cmd implements the radiowake command line.
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/radio-control/radiowake/internal/config"
	"github.com/radio-control/radiowake/internal/logging"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "radiowake",
	Short: "Wake radios and wait for the link to come back",
	Long: `radiowake asks a radio to reconnect and waits, up to a timeout, for the
radio to report that its link is up again.

It runs as an HTTP service (serve), or one-shot from the command line (wake),
and ships a scripted fake radio for trying wake policies locally (simulate).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./radiowake.yaml, $HOME/.config/radiowake or /etc/radiowake)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
}

// loadConfig reads the config file and returns the validated configuration.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := config.ReadFile(v, v.GetString("config")); err != nil {
		return nil, err
	}
	return config.Load(v)
}

// setup loads the configuration and builds the application logger.
func setup() (*config.Config, *logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// ExitError carries a process exit code other than 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
