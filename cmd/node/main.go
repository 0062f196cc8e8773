package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrovision/fedcore/node"
	"github.com/agrovision/fedcore/pkg/fl"
	"github.com/agrovision/fedcore/pkg/sdk"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "node"
	pathEnv       = ".env"
	clientTimeout = 30 * time.Second
)

type envConfig struct {
	LogLevel   string `env:"NODE_LOG_LEVEL" envDefault:"info"`
	ConfigPath string `env:"NODE_CONFIG"    envDefault:"node.toml"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	envCfg := envConfig{}
	if err := env.Parse(&envCfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(envCfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := node.LoadConfig(envCfg.ConfigPath)
	if err != nil {
		logger.Error("failed to load node configuration", slog.String("path", envCfg.ConfigPath), slog.Any("error", err))

		return err
	}

	n := node.New(cfg.Node.ID, cfg.Node.Region,
		node.WithTrainer(fl.NewGaussianTrainer(cfg.Node.Dimension)),
		node.WithSeed(cfg.Node.Seed),
	)
	client := sdk.NewSDK(sdk.Config{
		CoordinatorURL:  cfg.Coordinator.URL,
		TLSVerification: cfg.Coordinator.TLSVerification,
		Timeout:         clientTimeout,
	})
	agent := node.NewAgent(n, client, cfg.AgentConfig(), logger.With(slog.String("node_id", n.ID())))

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}

		return nil
	})

	g.Go(func() error {
		return agent.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s exited with error: %s", svcName, err))

		return err
	}

	return nil
}
