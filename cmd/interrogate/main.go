package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/uplink/internal/config"
	"github.com/ent0n29/uplink/internal/console"
	"github.com/ent0n29/uplink/internal/observability"
	"github.com/ent0n29/uplink/internal/persona"
	"github.com/ent0n29/uplink/internal/uplink"
)

var (
	personaID   string
	catalogPath string
	mode        string
	baseURL     string
	timeout     time.Duration
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "interrogate",
	Short: "Interrogate a persona over the uplink",
	Long: `Start an interactive interrogation session against a local inference engine.

Each line you type is sent as an operator turn. The subject's reply is printed
together with its stability, aggression and deception readings.

Commands:
  /state   show the current readings
  /reset   start over with the same subject
  /quit    leave`,
	SilenceUsage: true,
	RunE:         runInterrogate,
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := persona.LoadCatalog(catalogPath)
		if err != nil {
			return err
		}
		for _, p := range catalog.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-16s %s\n", p.ID, p.Name, p.Model)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "persona catalog YAML (default: built-in subjects; env PERSONA_CATALOG_PATH)")
	rootCmd.Flags().StringVarP(&personaID, "persona", "p", "", "subject id (env PERSONA_DEFAULT_ID)")
	rootCmd.Flags().StringVar(&mode, "mode", "", "uplink mode: ollama|mock (env UPLINK_MODE)")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "inference engine base URL (env UPLINK_BASE_URL)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-exchange timeout (env UPLINK_TIMEOUT)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and failure diagnostics")
	rootCmd.AddCommand(personasCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInterrogate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(level, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	catalog, err := persona.LoadCatalog(cfg.PersonaCatalogPath)
	if err != nil {
		return fmt.Errorf("persona catalog: %w", err)
	}
	subject := catalog.Default()
	if cfg.PersonaDefaultID != "" {
		subject, err = catalog.Get(cfg.PersonaDefaultID)
		if err != nil {
			return err
		}
	}

	transport, err := uplink.NewTransport(uplink.Config{
		Mode:     cfg.UplinkMode,
		BaseURL:  cfg.UplinkBaseURL,
		ChatPath: cfg.UplinkChatPath,
		Timeout:  cfg.UplinkTimeout,
	})
	if err != nil {
		return err
	}
	service := uplink.NewService(transport,
		uplink.WithLogger(logger.Named("uplink")),
		uplink.WithFormatHint(cfg.UplinkFormatHint),
	)
	logger.Debug("session ready",
		zap.String("persona", subject.ID),
		zap.String("mode", cfg.UplinkMode),
		zap.String("base_url", cfg.UplinkBaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &repl{
		console: console.New(subject, service),
		in:      cmd.InOrStdin(),
		out:     cmd.OutOrStdout(),
		timeout: cfg.UplinkTimeout,
		verbose: verbose,
	}
	return r.run(ctx)
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.PersonaCatalogPath = catalogPath
	}
	if flags.Changed("persona") {
		cfg.PersonaDefaultID = personaID
	}
	if flags.Changed("mode") {
		cfg.UplinkMode = mode
	}
	if flags.Changed("base-url") {
		cfg.UplinkBaseURL = baseURL
	}
	if flags.Changed("timeout") && timeout > 0 {
		cfg.UplinkTimeout = timeout
	}
}
