package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// this is set by goreleaser
	version string
)

func init() {
	if version == "" {
		version = "DEV"
	}
}

type options struct {
	configFile     string
	verbosityInfo  bool
	verbosityTrace bool
	logFilename    string
	config         Config
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "offline-cache",
		Short:         "Serve a web application network-first, with stored responses when offline",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(cmd, opts); err != nil {
				return err
			}
			config, err := loadConfig(opts.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, &config)
			opts.config = config
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file")
	flags.BoolVarP(&opts.verbosityInfo, "verbose", "v", false, "Verbosity: debug logging")
	flags.BoolVar(&opts.verbosityTrace, "vv", false, "Verbosity: trace logging")
	flags.StringVar(&opts.logFilename, "log-file", "", "Log file to use (in addition to stdout)")
	flags.String("origin", "", "Origin URL to proxy to")
	flags.String("host", "", "Hostname of origin")
	flags.String("db", "", "Cache DB file name (use 'memory' for in-memory db)")
	flags.String("store", "", "Store identifier")

	cmd.AddCommand(
		newServeCommand(opts),
		newInstallCommand(opts),
		newStoresCommand(opts),
	)
	return cmd
}

// applyFlags overrides the loaded config with flags given on the command line.
func applyFlags(cmd *cobra.Command, config *Config) {
	flags := cmd.Flags()
	if flags.Changed("origin") {
		config.Origin, _ = flags.GetString("origin")
	}
	if flags.Changed("host") {
		config.Host, _ = flags.GetString("host")
	}
	if flags.Changed("db") {
		config.DB, _ = flags.GetString("db")
	}
	if flags.Changed("store") {
		config.Store, _ = flags.GetString("store")
	}
	if flags.Changed("port") {
		config.Port, _ = flags.GetInt("port")
	}
}

func setupLogging(cmd *cobra.Command, opts *options) error {
	// set log level
	logLevel := zerolog.InfoLevel
	if opts.verbosityInfo {
		logLevel = zerolog.DebugLevel
	}
	if opts.verbosityTrace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stderr
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	if opts.logFilename != "" {
		logFileOutput, err := os.OpenFile(opts.logFilename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return err
		}
		logOutputs = append(logOutputs, logFileOutput)
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Exiting")
		os.Exit(1)
	}
}
