package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/completion"
	"github.com/alienxp03/botdebate/internal/config"
	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/debate"
	"github.com/alienxp03/botdebate/internal/export"
	"github.com/alienxp03/botdebate/internal/heuristics"
	"github.com/alienxp03/botdebate/internal/storage"
)

var (
	configPath string
	dbPath     string
	debugFlag  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "botdebate",
	Short: "Endless debates between two local LLM servers",
	Long: `botdebate makes two OpenAI-compatible chat endpoints debate a topic
turn by turn until they reach agreement or you stop them.

Replies that repeat recent content are regenerated, every turn is scored
for topic relevance and coherence, and the debate ends on its own once
both bots agree for a few consecutive turns.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.botdebate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(botsCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(configCmd)
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadApp() (*app, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFrom(config.ExpandPath(path))
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "console"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) openStorage() (storage.Storage, error) {
	path := dbPath
	if path == "" {
		path = a.cfg.Storage.Path
	}
	path = config.ExpandPath(path)

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Debug("storage ready", zap.String("path", path))
	return store, nil
}

func (a *app) client() *completion.Client {
	opts := a.cfg.CompletionOptions()
	opts.Logger = a.logger
	return completion.NewClient(opts)
}

func (a *app) completer(mock bool) debate.Completer {
	if mock {
		a.logger.Info("using scripted replies")
		return completion.NewScripted(completion.DemoLines)
	}
	return a.client()
}

// newManager builds a debate manager from the configuration. A configured
// judge confirms every lexical agreement.
func (a *app) newManager(completer debate.Completer, opts ...debate.Option) (*debate.Manager, error) {
	mcfg, err := a.cfg.ManagerConfig()
	if err != nil {
		return nil, err
	}
	lexical := heuristics.NewLexical(a.cfg.LexicalConfig())
	opts = append([]debate.Option{
		debate.WithLogger(a.logger),
		debate.WithEvaluator(lexical),
	}, opts...)

	if name := a.cfg.Debate.Judge; name != "" {
		judge, ok := a.cfg.Profile(name)
		if !ok {
			return nil, fmt.Errorf("judge %q is not a configured bot", name)
		}
		opts = append(opts, debate.WithAgreementChecker(&debate.ConfirmingChecker{
			Detector:  lexical,
			Judge:     judge,
			Completer: completer,
			Logger:    a.logger,
		}))
	}
	return debate.New(mcfg, completer, opts...)
}

// resolveDebateID finds a stored debate by ID or unique ID prefix.
func resolveDebateID(store storage.Storage, prefix string) (string, error) {
	debates, err := store.ListDebates(500, 0)
	if err != nil {
		return "", err
	}
	var found string
	for _, d := range debates {
		if d.ID == prefix {
			return d.ID, nil
		}
		if strings.HasPrefix(d.ID, prefix) {
			if found != "" {
				return "", fmt.Errorf("ambiguous debate id: %s", prefix)
			}
			found = d.ID
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", debate.ErrDebateNotFound, prefix)
	}
	return found, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// list command - list stored debates
var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored debates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		debates, err := store.ListDebates(listLimit, 0)
		if err != nil {
			return err
		}
		if len(debates) == 0 {
			fmt.Println("No debates found. Start one with: botdebate run \"Your topic\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOPIC\tSTATUS\tTURNS\tCREATED")
		fmt.Fprintln(w, "──\t─────\t──────\t─────\t───────")
		for _, d := range debates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				core.ShortID(d.ID),
				truncate(d.Topic, 40),
				d.Status,
				d.TurnCount,
				d.CreatedAt.Local().Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum number of debates")
}

// show command - print a stored debate
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveDebateID(store, args[0])
		if err != nil {
			return err
		}
		d, err := store.GetDebate(id)
		if err != nil {
			return err
		}
		turns, err := store.GetTurns(id)
		if err != nil {
			return err
		}

		fmt.Printf("\n🎭 Debate: %s\n", d.Topic)
		fmt.Printf("   ID: %s\n", d.ID)
		fmt.Printf("   Bots: %s vs %s\n", d.BotA, d.BotB)
		fmt.Printf("   Status: %s | Coherence: %.2f\n", d.Status, d.CoherenceScore)
		fmt.Printf("   Created: %s\n", d.CreatedAt.Format(time.RFC3339))

		if len(turns) > 0 {
			fmt.Println(strings.Repeat("─", 60))
			for _, t := range turns {
				printTurn(t.Number, t.Speaker, t.Content)
			}
		}
		if d.AgreementReached {
			fmt.Println(strings.Repeat("═", 60))
			fmt.Println("✅ Agreement reached")
		}
		return nil
	},
}

// export command - write a stored debate to a file
var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a stored debate as markdown, json or pdf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.GetExporter(export.Format(exportFormat))
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		store, err := a.openStorage()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := resolveDebateID(store, args[0])
		if err != nil {
			return err
		}
		d, err := store.GetDebate(id)
		if err != nil {
			return err
		}
		turns, err := store.GetTurns(id)
		if err != nil {
			return err
		}

		if exportOutput == "-" {
			return exporter.Export(d, turns, os.Stdout)
		}
		path := exportOutput
		if path == "" {
			path = export.GenerateFilename(d, exporter.FileExtension())
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := exporter.Export(d, turns, f); err != nil {
			f.Close()
			return fmt.Errorf("export failed: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "Export format (markdown, json, pdf)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file, - for stdout (default: generated name)")
}

// bots command - check both endpoints
var botsCmd = &cobra.Command{
	Use:   "bots",
	Short: "Check that the configured bots are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		profiles, err := a.cfg.Profiles()
		if err != nil {
			return err
		}
		statuses := a.client().HealthAll(cmd.Context(), profiles)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENDPOINT\tSTATUS\tLATENCY")
		unavailable := 0
		for _, s := range statuses {
			status := "✅ Available"
			if !s.Available {
				status = "❌ " + s.Error
				unavailable++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Bot, s.Endpoint, status, s.ResponseTime.Round(time.Millisecond))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if unavailable > 0 {
			return errors.New("some bots are unavailable")
		}
		return nil
	},
}

// personas command
var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List available bot personas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		catalog := a.cfg.PersonaCatalog()
		fmt.Println("\nAvailable Personas:")
		fmt.Println(strings.Repeat("─", 60))
		for _, id := range catalog.IDs() {
			p := catalog.Get(id)
			fmt.Printf("\n%s (%s)\n", p.Name, p.ID)
			fmt.Printf("  %s\n", p.Description)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		path = config.ExpandPath(path)

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(config.GenerateExample()), 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()
		for _, b := range a.cfg.Bots {
			fmt.Printf("%s\t%s\t%s\n", b.Name, b.URL, b.Persona)
		}
		fmt.Printf("storage\t%s\n", config.ExpandPath(a.cfg.Storage.Path))
		fmt.Printf("server\t%s\n", a.cfg.Server.Addr)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
