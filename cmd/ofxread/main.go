package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Veraticus/ofxread/internal/cli"
	"github.com/Veraticus/ofxread/internal/common"
	"github.com/Veraticus/ofxread/internal/config"
	"github.com/Veraticus/ofxread/internal/ofx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// app carries the settings shared by every command.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:   "ofxread",
		Short: "🧾 Read OFX and QFX bank statements",
		Long: `ofxread parses OFX 1.x (SGML) and OFX 2.x (XML) statement downloads into
accounts, balances and transactions.

Files are read offline; nothing is sent anywhere.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/ofxread/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("timezone", "", "zone for dates without an offset (default: Local)")
	rootCmd.PersistentFlags().String("db", "", "archive database path")

	// Bind flags to viper
	_ = a.v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = a.v.BindPFlag("parse.timezone", rootCmd.PersistentFlags().Lookup("timezone"))
	_ = a.v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	// Add commands
	rootCmd.AddCommand(parseCmd(a))
	rootCmd.AddCommand(showCmd(a))
	rootCmd.AddCommand(typesCmd())
	rootCmd.AddCommand(treeCmd())
	rootCmd.AddCommand(verifyCmd(a))
	rootCmd.AddCommand(importCmd(a))
	rootCmd.AddCommand(importsCmd(a))
	rootCmd.AddCommand(browseCmd(a))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel() // Always cleanup

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(common.UserMessage(err)))
		slog.Debug("Command failed", "error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for input the parser rejected and 1 for everything else.
func exitCode(err error) int {
	var perr *ofx.Error
	var nf *ofx.FileNotFoundError
	if errors.As(err, &perr) || errors.As(err, &nf) {
		return 2
	}
	return 1
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Search for config in standard locations
		a.v.AddConfigPath(fmt.Sprintf("%s/.config/ofxread", home))
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	// Environment variables
	a.v.SetEnvPrefix("OFXREAD")
	a.v.SetEnvKeyReplacer(config.EnvKeyReplacer)
	a.v.AutomaticEnv()

	// Read config file
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return common.NewUserError("invalid configuration", err)
	}
	a.cfg = cfg

	// Set up logging
	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func setupLogging(cfg *config.Config) error {
	level, err := common.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	return common.SetupLogger(level, cfg.LogFormat)
}

// parser builds an engine parser for the configured time zone.
func (a *app) parser() (*ofx.Parser, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	return ofx.NewParser(ofx.WithLocation(loc)), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "ofxread %s\n", version)
	return err
}
