package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zirnhelt/super-rss-feed/internal/config"
	"github.com/zirnhelt/super-rss-feed/internal/history"
	"github.com/zirnhelt/super-rss-feed/internal/llm"
	"github.com/zirnhelt/super-rss-feed/internal/pipeline"
	"github.com/zirnhelt/super-rss-feed/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "super-rss-feed",
	Short:   "Oracle-curated news feeds",
	Long:    "super-rss-feed collects articles from RSS feeds, scores them with an LLM oracle, and republishes the keepers as curated JSON Feeds per category.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(podcastCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("super-rss-feed", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/super-rss-feed/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, categories, and the oracle provider.")
		return nil
	},
}

// --- run command ---

var runCategory string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the curation pipeline: collect -> dedup -> score -> publish",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, db, err := newPipeline()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipe.Run(context.Background(), runCategory)
		printSteps(result)
		if result.Failed() {
			return errors.New("pipeline finished with errors")
		}
		fmt.Println("\nRun complete. 'super-rss-feed serve' publishes the feeds locally.")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runCategory, "category", "", "Publish only this category")
}

// --- podcast command ---

var podcastTheme string

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Select today's themed articles from the weekly pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, db, err := newPipeline()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipe.Podcast(context.Background(), podcastTheme)
		printSteps(result)
		if result.Failed() {
			return errors.New("podcast selection finished with errors")
		}
		return nil
	},
}

func init() {
	podcastCmd.Flags().StringVar(&podcastTheme, "theme", "", "Select for this theme instead of today's")
}

// --- discover command ---

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Evaluate candidate feeds and report which are worth adding",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, db, err := newPipeline()
		if err != nil {
			return err
		}
		defer db.Close()

		result := pipe.Discover(context.Background())
		printSteps(result)
		if result.Failed() {
			return errors.New("discovery finished with errors")
		}
		fmt.Printf("\nReport: %s\n", cfg.DiscoveryReportPath())
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feed files and recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Data directory: %s\n\n", cfg.GetDataDir())

		fmt.Println("Last runs:")
		printLastRun(db, "Curation", history.KindRun)
		printLastRun(db, "Podcast", history.KindPodcast)
		printLastRun(db, "Discovery", history.KindDiscover)

		fmt.Println("\nFeeds:")
		for _, cat := range cfg.Categories {
			printFeedFile(cat.Name)
		}
		if len(cfg.Podcast.Themes) > 0 {
			printFeedFile("podcast")
		}
		return nil
	},
}

func printLastRun(db *history.DB, label, kind string) {
	run, err := db.LastRun(kind)
	if err != nil {
		fmt.Printf("  %-10s error: %v\n", label+":", err)
		return
	}
	if run == nil {
		fmt.Printf("  %-10s never\n", label+":")
		return
	}
	fmt.Printf("  %-10s %s (%d collected, %d admitted, %d oracle failures)\n",
		label+":", run.StartedAt.UTC().Format("2006-01-02 15:04 UTC"),
		run.Collected, run.Admitted, run.OracleFailures)
}

func printFeedFile(name string) {
	path := filepath.Join(cfg.FeedsDir(), "feed-"+name+".json")
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  %-10s not written yet\n", name+":")
		return
	}
	fmt.Printf("  %-10s %s (updated %s)\n", name+":", path,
		info.ModTime().UTC().Format("2006-01-02 15:04 UTC"))
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		if port == 0 {
			port = 8080
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// newPipeline builds the oracle provider before anything touches disk,
// so a missing credential fails the command without half-written state.
func newPipeline() (*pipeline.Pipeline, *history.DB, error) {
	provider, err := llm.CreateProvider(
		cfg.Oracle.Provider, cfg.Oracle.Model, cfg.Oracle.APIKeyEnv,
		cfg.Oracle.GeminiModel, cfg.Oracle.GeminiKeyEnv,
		cfg.Oracle.RequestsPerSecond,
	)
	if err != nil {
		return nil, nil, err
	}

	db, err := openHistory()
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(cfg, provider, db), db, nil
}

func openHistory() (*history.DB, error) {
	if err := os.MkdirAll(cfg.GetDataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return history.Open(cfg.HistoryDBPath())
}

func printSteps(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}
