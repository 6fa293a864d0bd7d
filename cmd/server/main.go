package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noodles-scene/noodles-server/internal/core/dispatch"
	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/observability/log"
	"github.com/noodles-scene/noodles-server/internal/core/scene"
	"github.com/noodles-scene/noodles-server/internal/server"
)

// main wires the "hello world" starting state spec §8 scenario 1
// describes: a single ping method that always replies "pong", enough
// to exercise the intro/snapshot/invoke round trip end to end.
func main() {
	logger := log.New(log.LevelInfo)

	cfg := server.DefaultConfig()
	cfg.Logger = logger

	if len(os.Args) > 1 {
		fc, err := server.LoadFileConfig(os.Args[1])
		if err != nil {
			logger.Error("failed to load config file", log.Error(err))
			os.Exit(1)
		}
		if err := fc.ApplyTo(&cfg); err != nil {
			logger.Error("failed to apply config file", log.Error(err))
			os.Exit(1)
		}
	}

	cfg.StartingState = []server.StartingComponent{
		{
			Kind: ids.KindMethod,
			Build: func(id ids.ID) (scene.Component, error) {
				return scene.NewMethod(id, "ping", nil, nil, nil)
			},
			Handler: func(context.Context, dispatch.Context, []any) (any, error) {
				return "pong", nil
			},
		},
	}

	rt, err := server.New(cfg)
	if err != nil {
		logger.Error("failed to build server", log.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := rt.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "server exited with error:", err)
		os.Exit(1)
	}
}
