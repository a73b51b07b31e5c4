package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/avelardi/margo/pkg/margo/assistant"
	"github.com/avelardi/margo/pkg/margo/channels"
	"github.com/avelardi/margo/pkg/margo/channels/discord"
	"github.com/avelardi/margo/pkg/margo/channels/telegram"
	"github.com/avelardi/margo/pkg/margo/config"
	"github.com/avelardi/margo/pkg/margo/events"
	"github.com/avelardi/margo/pkg/margo/history"
	"github.com/avelardi/margo/pkg/margo/llm"
	"github.com/avelardi/margo/pkg/margo/scheduler"
	"github.com/avelardi/margo/pkg/margo/tracker"
	"github.com/avelardi/margo/pkg/margo/vault"
)

// newServeCmd creates the `margo serve` command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant service",
		Long: `Connects the configured chat channels, starts the scheduler and the
recurring events engine, and serves until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd)
	config.ResolveSecrets(cfg, logger)

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no Gemini API key configured; run `margo setup`")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	if err != nil {
		return fmt.Errorf("initialize llm: %w", err)
	}

	hist := history.New(cfg.History.File, logger)

	// The vault is optional: without it, note tools and reminder derivation
	// are disabled and only global events and tracker tools remain.
	var vlt *vault.Vault
	if cfg.Vault.Path != "" {
		vlt, err = vault.New(cfg.Vault.Path, logger)
		if err != nil {
			return fmt.Errorf("open vault: %w", err)
		}
	} else {
		logger.Warn("vault path not configured, notes and reminders disabled")
	}

	var trk *tracker.Client
	if cfg.Tracker.APIToken != "" {
		trk = tracker.New(cfg.Tracker.APIToken, logger)
	} else {
		logger.Warn("tracker token not configured, task tools disabled")
	}

	mgr := channels.NewManager(logger)
	if cfg.Channels.Telegram.Token != "" {
		tg := telegram.New(telegram.Config{
			Token:        cfg.Channels.Telegram.Token,
			AllowedChats: cfg.Channels.Telegram.AllowedChats,
		}, logger)
		if err := mgr.Register(tg); err != nil {
			return err
		}
	}
	if cfg.Channels.Discord.Token != "" {
		dc := discord.New(discord.Config{
			Token:           cfg.Channels.Discord.Token,
			AllowedChannels: cfg.Channels.Discord.AllowedChannels,
		}, logger)
		if err := mgr.Register(dc); err != nil {
			return err
		}
	}
	if len(mgr.Names()) == 0 {
		return fmt.Errorf("no chat channel configured; set a Telegram or Discord token")
	}

	reg := assistant.NewRegistry()
	(&assistant.Toolset{
		Vault:   vlt,
		Tracker: trk,
		History: hist,
		Logger:  logger,
	}).RegisterAll(reg)

	asst := assistant.New(client, hist, reg, mgr, cfg.Persona, logger)

	sched := scheduler.New(logger)
	engine := events.New(sched, vlt, hist, client, mgr, asst, events.Options{
		GlobalEventsPath: cfg.Events.File,
		TasksDir:         cfg.Vault.TasksDir,
		Debounce:         cfg.Events.Debounce.Std(),
		LeadLong:         cfg.Events.LeadLong.Std(),
		LeadShort:        cfg.Events.LeadShort.Std(),
		PrimaryChannel:   cfg.Channels.Primary.Channel,
		PrimaryChatID:    cfg.Channels.Primary.ChatID,
	}, logger)

	mgr.ConnectAll(ctx)
	defer mgr.DisconnectAll()

	// The engine registers the vault watch target, so it must run before the
	// scheduler starts.
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start events engine: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	logger.Info("margo serving", "channels", mgr.Names(), "events", len(engine.EventIDs()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		asst.Run(gctx)
		return nil
	})
	return g.Wait()
}
