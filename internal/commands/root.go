// ABOUTME: Root cobra command and global flags
// ABOUTME: Loads configuration and sets up logging for every subcommand
package commands

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/config"
)

var (
	// Global flags
	cfgFile string
	logFile string
	debug   bool

	// Global configuration, loaded before any subcommand runs
	globalConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recmeter",
	Short: "Real-time audio level meter",
	Long: `recmeter - per-channel level metering for PCM audio.

Captures audio from a test tone, an MP3/FLAC file or the default input
device, computes a normalized peak level per channel for every buffer and
shows the levels as a scrolling waveform. Levels can also be relayed over
WebSocket to remote displays on the local network.

Examples:
  # Meter the default microphone
  recmeter meter --source mic

  # Meter a file in real time and listen to it
  recmeter meter --source file --file take1.flac --monitor

  # Relay levels to remote displays
  recmeter serve --source mic --port 8928

  # Watch a relay found via mDNS
  recmeter watch
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (default recmeter.log)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(meterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the config file, or the defaults, and applies global flags
func initConfig(cmd *cobra.Command) error {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-file") {
		cfg.Logging.File = logFile
	}
	if cmd.Flags().Changed("debug") {
		cfg.Logging.Debug = debug
	}

	globalConfig = cfg
	return nil
}

// getConfig returns the global configuration
func getConfig() *config.Config {
	return globalConfig
}

// setupLogging directs the standard logger to the log file. The TUI owns
// the terminal, so only non-TUI commands also log to stdout.
func setupLogging(cfg config.LoggingConfig, tui bool) (io.Closer, error) {
	f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	if tui {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		log.Printf("Debug logging enabled")
	}
	return f, nil
}
