package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vidurdewan/the-digest-sub001/internal/brief"
	"github.com/vidurdewan/the-digest-sub001/internal/budget"
	"github.com/vidurdewan/the-digest-sub001/internal/config"
	"github.com/vidurdewan/the-digest-sub001/internal/continuity"
	"github.com/vidurdewan/the-digest-sub001/internal/llm"
	"github.com/vidurdewan/the-digest-sub001/internal/store"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
	"github.com/vidurdewan/the-digest-sub001/internal/watchlist"
	"github.com/vidurdewan/the-digest-sub001/internal/web"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Snapshot/ack flags
	clientID string
	depth    string
	untilStr string

	// Reaction flags
	topic string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "digest - personal news continuity engine",
	Long: `digest answers one question for a returning reader: what changed since
you last looked, and what of it matters to you?

It ranks new items against your watchlist and reading history, groups them
into threads, and produces a short cited brief, with a deterministic
fallback when narrative generation is unavailable or over budget.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the continuity HTTP API",
	RunE:  runServe,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute a continuity snapshot and print it as JSON",
	RunE:  runSnapshot,
}

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge the current snapshot, advancing the client watermark",
	RunE:  runAck,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.json]",
	Short: "Upsert items from a JSON array file into the local store",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var reactCmd = &cobra.Command{
	Use:   "react [item-id] [reaction]",
	Short: "Record a reaction (useful, surprising, already_knew, bad_connection, not_important)",
	Args:  cobra.ExactArgs(2),
	RunE:  runReact,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".digest/config.yaml", "path to config file")

	snapshotCmd.Flags().StringVar(&clientID, "client", "", "client identifier")
	snapshotCmd.Flags().StringVar(&depth, "depth", "", "report depth (shallow, medium, deep)")

	ackCmd.Flags().StringVar(&clientID, "client", "", "client identifier")
	ackCmd.Flags().StringVar(&depth, "depth", "", "preferred depth to store")
	ackCmd.Flags().StringVar(&untilStr, "until", "", "acknowledge up to this RFC3339 time (default now)")

	reactCmd.Flags().StringVar(&topic, "topic", "", "topic to credit the engagement to")

	rootCmd.AddCommand(serveCmd, snapshotCmd, ackCmd, ingestCmd, reactCmd)
}

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg       *config.Config
	store     *store.LocalStore
	watchlist *watchlist.FileSource
	tracker   *budget.Tracker
	engine    *continuity.Engine
}

// buildApp wires store, watchlist, budget, LLM client and engine from config.
// watchFiles enables the fsnotify reload loop; one-shot commands skip it.
func buildApp(ctx context.Context, watchFiles bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewLocalStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	wl := watchlist.New(cfg.Watchlist.Path, logger)
	if watchFiles {
		if err := wl.Start(); err != nil {
			logger.Warn("watchlist hot reload unavailable", zap.Error(err))
		}
	}

	tracker, err := budget.NewTracker(cfg.Budget.Path, cfg.Budget.DailyTokenLimit)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open budget tracker: %w", err)
	}

	client, err := llm.New(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	if client != nil && cfg.LLM.APIKey == "" {
		logger.Warn("llm api key not set, briefs will use the deterministic fallback")
	}
	briefs := brief.NewGenerator(client, tracker, cfg.LLMTimeout(), logger)

	opts := continuity.DefaultOptions()
	opts.CacheTTL = cfg.CacheTTL()
	opts.Retention = cfg.Retention()
	opts.LookbackWindow = cfg.LookbackWindow()
	opts.FirstVisitWindow = cfg.FirstVisitWindow()
	if cfg.Continuity.SweepProbability > 0 {
		opts.SweepProbability = cfg.Continuity.SweepProbability
	}
	if cfg.Continuity.DeltaCap > 0 {
		opts.DeltaCap = cfg.Continuity.DeltaCap
	}

	engine := continuity.New(st, wl, st, st, st, briefs, opts, logger)

	return &app{cfg: cfg, store: st, watchlist: wl, tracker: tracker, engine: engine}, nil
}

func (a *app) close() {
	a.engine.Flush()
	a.watchlist.Stop()
	if err := a.tracker.Save(); err != nil {
		logger.Warn("budget save failed", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	srv := web.NewServer(a.engine, a.store, a.cfg.Server.Addr, logger)
	return web.Run(srv, a.engine, logger)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	payload, err := a.engine.Snapshot(cmd.Context(), clientID, depth)
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func runAck(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	var until *time.Time
	if untilStr != "" {
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return fmt.Errorf("invalid --until value: %w", err)
		}
		until = &t
	}

	state, err := a.engine.Acknowledge(cmd.Context(), clientID, depth, until)
	if err != nil {
		return err
	}
	return printJSON(state)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read items file: %w", err)
	}
	var items []store.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse items file: %w", err)
	}

	for _, item := range items {
		if item.ID == "" || item.Title == "" {
			return fmt.Errorf("every item needs an id and a title")
		}
		if item.PublishedAt.IsZero() {
			item.PublishedAt = time.Now().UTC()
		}
		if err := a.store.PutItem(cmd.Context(), item); err != nil {
			return fmt.Errorf("failed to store item %s: %w", item.ID, err)
		}
	}
	logger.Info("ingested items", zap.Int("count", len(items)))
	return nil
}

func runReact(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	itemID := args[0]
	reaction, ok := parseReaction(args[1])
	if !ok {
		return fmt.Errorf("unknown reaction %q", args[1])
	}
	if err := a.store.AddReaction(cmd.Context(), itemID, reaction); err != nil {
		return err
	}
	if topic != "" {
		if err := a.store.BumpTopicEngagement(cmd.Context(), topic, 1); err != nil {
			return err
		}
	}
	return nil
}

func parseReaction(s string) (types.Reaction, bool) {
	switch r := types.Reaction(s); r {
	case types.ReactionUseful, types.ReactionSurprising, types.ReactionAlreadyKnew,
		types.ReactionBadLink, types.ReactionNotImportant:
		return r, true
	}
	return "", false
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
