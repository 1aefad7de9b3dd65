package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mixdeck/config"
	"mixdeck/logger"
	"mixdeck/machine"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mixdeck",
	Short: "A two-channel background and voice-over mixer",
	Long: `Mixdeck plays a looping background bed under shuffled voice-over clips,
with a single balance control between the two and a master volume.

Clips live in an S3-compatible bucket (Cloudflare R2 by default) and are
managed through the HTTP API, which also drives playback.`,
	RunE: runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Local flags for the server command
	rootCmd.Flags().StringP("listen", "l", ":8080", "HTTP listen address")
	rootCmd.Flags().Int("mix", 50, "initial mix ratio (0 = background only, 100 = voiceover only)")
	rootCmd.Flags().Int("volume", 80, "initial master volume (0-100)")
	rootCmd.Flags().Duration("preroll", 0, "delay before the first voiceover")
	rootCmd.Flags().Bool("autostart", false, "start playing as soon as the server is up")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("http.listen", rootCmd.Flags().Lookup("listen"))
	viper.BindPFlag("mixer.mix_ratio", rootCmd.Flags().Lookup("mix"))
	viper.BindPFlag("mixer.master_volume", rootCmd.Flags().Lookup("volume"))
	viper.BindPFlag("session.preroll_delay", rootCmd.Flags().Lookup("preroll"))
	viper.BindPFlag("session.auto_start", rootCmd.Flags().Lookup("autostart"))
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runServer starts the main application
func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logging
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Create and initialize the machine
	m := machine.New(cfg)
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize machine: %w", err)
	}

	// Start the machine
	if err := m.Start(); err != nil {
		m.Stop()
		return fmt.Errorf("failed to start machine: %w", err)
	}

	// Setup graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-signalChan:
		fmt.Printf("\nReceived %s, shutting down gracefully...\n", sig)
	case err := <-m.Error():
		fmt.Printf("Error occurred: %v\n", err)
	}

	// Graceful shutdown
	if err := m.Stop(); err != nil {
		return fmt.Errorf("failed to stop machine gracefully: %w", err)
	}

	return nil
}
