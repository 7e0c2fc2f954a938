package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/nlqeval/internal/adapter/postgres"
	"github.com/guillermoBallester/nlqeval/internal/adapter/rules"
	"github.com/guillermoBallester/nlqeval/internal/audit"
	"github.com/guillermoBallester/nlqeval/internal/config"
	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/guillermoBallester/nlqeval/internal/core/service"
	"github.com/guillermoBallester/nlqeval/internal/prompts"
	"github.com/guillermoBallester/nlqeval/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// runtime is the configured process state shared by the subcommands.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Provider
}

// flagOverrides starts config overrides from the global flags. Subcommands
// add their own fields before loading.
func flagOverrides(cmd *cobra.Command, g *globalFlags) config.Overrides {
	return config.Overrides{
		LogLevel:    changedString(cmd, "log-level", &g.logLevel),
		OTelEnabled: g.otel,
	}
}

// changedString returns v only when the named flag was set on the command
// line, so unset flags leave env values alone.
func changedString(cmd *cobra.Command, name string, v *string) *string {
	if f := cmd.Flag(name); f != nil && f.Changed {
		return v
	}
	return nil
}

func changedInt32(cmd *cobra.Command, name string, v *int32) *int32 {
	if f := cmd.Flag(name); f != nil && f.Changed {
		return v
	}
	return nil
}

func newRuntime(cmd *cobra.Command, o config.Overrides) (*runtime, error) {
	cfg, err := config.Load(o)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr. stdout carries NDJSON output or the MCP transport.
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	rt := &runtime{cfg: cfg, logger: logger}
	if cfg.OTelEnabled {
		tp, err := telemetry.Init(cmd.Context(), "nlqeval", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		rt.telemetry = tp
		logger.Info("opentelemetry enabled")
	}
	return rt, nil
}

func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
	}
}

func (r *runtime) templates() (service.Templates, error) {
	p, err := prompts.Prompt(r.cfg.PromptTemplate)
	if err != nil {
		return service.Templates{}, fmt.Errorf("loading prompt template: %w", err)
	}
	c, err := prompts.Critique(r.cfg.CritiqueTemplate)
	if err != nil {
		return service.Templates{}, fmt.Errorf("loading critique template: %w", err)
	}
	return service.Templates{Prompt: p, Critique: c}, nil
}

// recorders opens every configured score sink. The returned recorder must be
// closed by the caller.
func (r *runtime) recorders(ctx context.Context) (port.ScoreRecorder, error) {
	var sinks audit.Multi

	if r.cfg.AuditLog != "" {
		a, err := audit.NewFileAuditor(r.cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		sinks = append(sinks, a)
		r.logger.Info("audit log enabled", slog.String("file", r.cfg.AuditLog))
	}

	if r.cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, r.cfg.DatabaseURL, postgres.PoolOptions{
			MaxConns:        r.cfg.PoolMaxConns,
			MinConns:        r.cfg.PoolMinConns,
			MaxConnLifetime: r.cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		store := postgres.NewScoreStore(pool, uuid.New(), r.logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, store)
		r.logger.Info("score store connected",
			slog.String("db.system", "postgresql"),
			slog.String("run.id", store.RunID().String()),
		)
	}

	if len(sinks) == 0 {
		return audit.NoopAuditor{}, nil
	}
	return sinks, nil
}

// scoreService assembles the service from config. critic may be nil.
func (r *runtime) scoreService(critic port.Model, recorder port.ScoreRecorder) (*service.ScoreService, error) {
	rl, err := rules.Load(r.cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	if r.cfg.RulesFile != "" {
		r.logger.Info("rules loaded", slog.String("file", r.cfg.RulesFile))
	}

	tmpl, err := r.templates()
	if err != nil {
		return nil, err
	}

	return service.NewScoreService(
		domain.NewQueryValidator(rl),
		domain.NewAdjudicator(),
		critic,
		tmpl,
		recorder,
		r.logger,
		r.telemetry.Tracer(),
		r.telemetry.Instruments(),
	), nil
}

// openOutput returns the file at path, or stdout for "" and "-".
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	return f, f.Close, nil
}
