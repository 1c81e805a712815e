package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/core"
	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/examples/companion"
	"github.com/hupe1980/lifemesh/logging"
	"github.com/hupe1980/lifemesh/model"
	"github.com/hupe1980/lifemesh/model/anthropic"
	"github.com/hupe1980/lifemesh/model/openai"
	"github.com/hupe1980/lifemesh/runner"
	"github.com/hupe1980/lifemesh/server"
	"github.com/hupe1980/lifemesh/session"
	sessionredis "github.com/hupe1980/lifemesh/session/redis"
)

func newStartCmd() *cobra.Command {
	var (
		flags    projectFlags
		provider string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent server",
		Long: `Start serves the companion agent over HTTP until SIGINT or SIGTERM.

Configuration is read from the project file and overridden by flags. The
model provider defaults to OpenAI when OPENAI_API_KEY is set, to Anthropic
when ANTHROPIC_API_KEY is set, and to a mock model otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.prepare(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.DecodeServer(p)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())

			m, err := selectModel(provider)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessions, closeSessions, err := openSessions(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSessions()

			eng := engine.New(func(o *engine.Options) {
				o.Logger = logger
				o.Project = p.Server
				o.Sessions = sessions
			})

			def, err := companion.New(m)
			if err != nil {
				return err
			}
			if err := eng.Register(def); err != nil {
				return err
			}

			srv := server.New(eng, func(o *server.Options) {
				o.Logger = logger
				o.Addr = cfg.Addr()
				o.Token = cfg.Server.Token
				o.RateLimit = cfg.Server.RateLimit
			})

			r := runner.New(eng, func(o *runner.Options) {
				o.Logger = logger
				o.Server = srv
				if len(cfg.Bridge.Command) > 0 {
					o.Bridge = runner.NewProcess(cfg.Bridge.Command, func(po *runner.ProcessOptions) {
						po.Logger = logger
						po.Stdout = cmd.OutOrStdout()
						po.Stderr = cmd.ErrOrStderr()
					})
				}
			})

			logger.Info("lifemesh.start", "addr", cfg.Addr(), "model", m.Info().Name, "session", cfg.Session.Backend)
			_, err = r.Run(ctx)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&provider, "provider", "auto", "model provider: auto, openai, anthropic or mock")
	return cmd
}

func selectModel(provider string) (model.Model, error) {
	if provider == "auto" {
		switch {
		case os.Getenv("OPENAI_API_KEY") != "":
			provider = "openai"
		case os.Getenv("ANTHROPIC_API_KEY") != "":
			provider = "anthropic"
		default:
			provider = "mock"
		}
	}

	switch provider {
	case "openai":
		return openai.NewModel(), nil
	case "anthropic":
		return anthropic.NewModel(), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func openSessions(ctx context.Context, cfg *config.ServerConfig) (core.SessionStore, func(), error) {
	if cfg.Session.Backend != "redis" {
		return session.NewInMemoryStore(), func() {}, nil
	}
	store, err := sessionredis.Dial(ctx, cfg.Session.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}
