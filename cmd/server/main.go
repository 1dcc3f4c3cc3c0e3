package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Paseru/jeu-noel-server/internal/config"
	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/httpapi"
	"github.com/Paseru/jeu-noel-server/internal/hub"
	"github.com/Paseru/jeu-noel-server/internal/room"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := room.Options{
		Round: game.RoundRules{
			MinPlayers:    cfg.MinPlayers,
			Countdown:     cfg.Countdown,
			StartingDelay: cfg.StartingDelay,
			Voting:        cfg.Voting,
		},
		Gather: game.GatherRules{
			Countdown: cfg.GatherCountdown,
			Grace:     cfg.GatherGrace,
		},
		Attack: game.AttackRules{
			ClipDuration: cfg.AttackClip,
			HitFraction:  cfg.AttackFraction,
			Range:        cfg.AttackRange,
		},
		CharacterCount: cfg.CharacterCount,
		TickInterval:   cfg.TickInterval,
	}

	h := hub.NewHub(ctx, opts, log)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(h, cfg.PublicURL, log),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
