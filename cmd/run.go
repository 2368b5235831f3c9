package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/triagebot/internal/bot"
	"github.com/nextlevelbuilder/triagebot/internal/classifier"
	"github.com/nextlevelbuilder/triagebot/internal/config"
	"github.com/nextlevelbuilder/triagebot/internal/engine"
	"github.com/nextlevelbuilder/triagebot/internal/escalate"
	"github.com/nextlevelbuilder/triagebot/internal/janitor"
	"github.com/nextlevelbuilder/triagebot/internal/store/pg"
	"github.com/nextlevelbuilder/triagebot/internal/workers"
)

// devAdminUsername is the hard-coded human invited into operator groups when
// DEVELOPMENT_MODE is on; production reads bot_settings.support_username.
const devAdminUsername = "support_dev_admin"

// runGateway wires the whole triage stack and blocks until a signal.
func runGateway(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("starting triagebot", "version", Version, "development", cfg.Development)

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := pg.New(pool)

	proxyAuth, err := workers.ParseProxyAuth(cfg.ProxyAuth)
	if err != nil {
		return err
	}
	identities, err := workers.NewPool(cfg.SessionsDir, proxyAuth, repo)
	if err != nil {
		return err
	}

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	sender := bot.NewSender(tgBot)
	channel := bot.NewChannel(tgBot, sender, repo)

	cls := classifier.New(cfg.NanoGPTAPIKey, cfg.NanoGPTBaseURL)
	orch := escalate.New(repo, sender, identities, cfg.BotUsername, adminUsername(cfg), cfg.Development)
	eng, err := engine.New(repo, sender, cls, orch)
	if err != nil {
		return err
	}
	reaper := janitor.New(repo, identities)

	if err := channel.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := channel.Stop(stopCtx); err != nil {
			slog.Warn("bot shutdown incomplete", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error { return identities.Watch(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	slog.Info("triagebot stopped")
	return nil
}

func adminUsername(cfg *config.Config) string {
	if cfg.SupportAdminUsername != "" {
		return cfg.SupportAdminUsername
	}
	return devAdminUsername
}
