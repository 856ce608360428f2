package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/postscraper/config"
	"sjsage522/postscraper/internal/scraper"
	"sjsage522/postscraper/logger"
)

// cliFlags holds the command line overrides
type cliFlags struct {
	settings string
	input    string
	output   string
	renderer string
	workers  int
}

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "postscraper",
		Short: "Scrape a queue of social media posts into a spreadsheet",
		Long: `postscraper reads post urls from the input spreadsheet, renders every page,
extracts the post fields and merges them into the output spreadsheet. Processed
urls are removed from the input so an interrupted batch can simply be re-run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.settings, "settings", "settings.json", "settings file (YAML or JSON)")
	cmd.Flags().StringVar(&flags.input, "input", "", "input queue spreadsheet")
	cmd.Flags().StringVar(&flags.output, "output", "", "output spreadsheet")
	cmd.Flags().StringVar(&flags.renderer, "renderer", "", "page renderer: browser or http")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "number of concurrent fetches")

	cmd.AddCommand(newInstallCmd(flags))
	return cmd
}

// newInstallCmd creates the install command.
func newInstallCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the playwright driver and Chromium",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Default
			cfg, err := config.LoadConfig(flags.settings)
			if err != nil {
				log.Error().Err(err).Msg("Invalid configuration")
				return err
			}

			log.Info().Str("driver_path", cfg.DriverPath).Msg("Installing playwright driver and Chromium")
			if err := scraper.InstallBrowser(scraper.BrowserOptions{DriverPath: cfg.DriverPath}); err != nil {
				log.Error().Err(err).Msg("Install failed")
				return err
			}
			log.Info().Msg("Install finished")
			return nil
		},
	}
}

func runBatch(cmd *cobra.Command, flags *cliFlags) error {
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.LoadConfig(flags.settings)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}
	applyFlags(cmd, flags, cfg)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cmd *cobra.Command, flags *cliFlags, cfg *config.Config) {
	if cmd.Flags().Changed("input") {
		cfg.InputPath = flags.input
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputPath = flags.output
	}
	if cmd.Flags().Changed("renderer") {
		cfg.Renderer = flags.renderer
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flags.workers
	}
}
