package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchpulse/matchpulse/internal/analyzer"
	"github.com/matchpulse/matchpulse/internal/clock"
	"github.com/matchpulse/matchpulse/internal/domain"
	"github.com/matchpulse/matchpulse/internal/feed"
	"github.com/matchpulse/matchpulse/internal/lifecycle"
	"github.com/matchpulse/matchpulse/internal/metrics"
	"github.com/matchpulse/matchpulse/internal/pipeline"
	"github.com/matchpulse/matchpulse/internal/rl"
	"github.com/matchpulse/matchpulse/internal/server"
	"github.com/matchpulse/matchpulse/internal/server/handler"
	"github.com/matchpulse/matchpulse/internal/server/ws"
	"github.com/matchpulse/matchpulse/internal/trend"
)

// pipelineParts groups the engine with the collaborators the status and
// outcome endpoints also need direct access to.
type pipelineParts struct {
	engine     *pipeline.Engine
	agent      *rl.Agent
	normalizer *clock.Normalizer
	metrics    *metrics.EngineMetrics
}

// buildPipeline assembles the evaluation pipeline from configuration. store
// is nil in monitor mode, which disables persistence but keeps evaluation,
// learning, and broadcast intact.
func (a *App) buildPipeline(deps *Dependencies, store domain.SignalStore) *pipelineParts {
	cfg := a.cfg

	feedClient := feed.NewClient(feed.Options{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Leagues:           cfg.Provider.Leagues,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		RequestTimeout:    cfg.Provider.RequestTimeout.Duration,
	}, a.logger)

	// The stale-clock fallback shares the provider client but goes through a
	// concurrency-bounded wrapper so a burst of stale matches cannot flood
	// the provider.
	var detail domain.FixtureDetailFetcher
	if cfg.Clock.FallbackEnabled {
		detail = feed.NewBoundedDetailFetcher(
			feedClient,
			int64(cfg.Provider.DetailConcurrency),
			cfg.Clock.FallbackTimeout.Duration,
		)
	}

	normalizer := clock.NewNormalizer(clock.Config{
		StalenessThreshold: cfg.Clock.StalenessThreshold.Duration,
		CacheTTL:           cfg.Clock.CacheTTL.Duration,
		FallbackEnabled:    cfg.Clock.FallbackEnabled,
		FallbackTimeout:    cfg.Clock.FallbackTimeout.Duration,
		IdleEviction:       cfg.Clock.IdleEviction.Duration,
	}, detail, a.logger)

	builder := pipeline.NewContextBuilder(normalizer, cfg.Provider.Leagues, a.logger)

	var trends domain.TrendProvider
	if cfg.Trends.BaseURL != "" {
		trends = trend.NewClient(trend.Options{
			BaseURL:        cfg.Trends.BaseURL,
			APIKey:         cfg.Trends.APIKey,
			RequestTimeout: cfg.Trends.RequestTimeout.Duration,
			CacheTTL:       cfg.Trends.CacheTTL.Duration,
		}, a.logger)
	}

	analyzerClient := analyzer.NewClient(analyzer.Options{
		BaseURL:        cfg.Analyzer.BaseURL,
		RequestTimeout: cfg.Analyzer.RequestTimeout.Duration,
	}, a.logger)

	rlCfg := rl.DefaultConfig()
	rlCfg.LearningRate = cfg.RL.LearningRate
	rlCfg.Epsilon = cfg.RL.Epsilon
	rlCfg.EpsilonDecay = cfg.RL.EpsilonDecay
	rlCfg.EpsilonMin = cfg.RL.EpsilonMin
	rlCfg.EpsilonMax = cfg.RL.EpsilonMax
	rlCfg.Discount = cfg.RL.Discount
	rlCfg.BufferSize = cfg.RL.BufferSize
	rlCfg.BatchSize = cfg.RL.BatchSize
	rlCfg.TargetSyncEvery = cfg.RL.TargetSyncEvery
	rlCfg.DoubleQ = cfg.RL.DoubleQ
	rlCfg.PrioritizedReplay = cfg.RL.PrioritizedReplay
	rlCfg.MaxStates = cfg.RL.MaxStates
	agent := rl.NewAgent(rlCfg, a.logger)

	markets := make(map[string]lifecycle.MarketConfig, len(cfg.Signals.Markets))
	for bucket, m := range cfg.Signals.Markets {
		markets[bucket] = lifecycle.MarketConfig{
			Enabled:            m.Enabled,
			MinConfidence:      m.MinConfidence,
			MaxSignalsPerMatch: m.MaxSignalsPerMatch,
		}
	}
	manager := lifecycle.NewManager(lifecycle.Config{
		Markets:          markets,
		MaturationWindow: cfg.Signals.MaturationWindow.Duration,
		Cooldown:         cfg.Signals.Cooldown.Duration,
		MaxActiveDisplay: cfg.Signals.MaxActiveDisplay,
	}, a.logger)

	m := metrics.NewEngineMetrics()

	engine := pipeline.NewEngine(pipeline.EngineOptions{
		Feed:       feedClient,
		Builder:    builder,
		Normalizer: normalizer,
		Trends:     trends,
		Analyzer:   analyzerClient,
		Agent:      agent,
		Manager:    manager,
		Store:      store,
		Cache:      deps.Snapshots,
		Bus:        deps.Bus,
		Notifier:   deps.Notifier,
		Metrics:    m,
		SignalTTL:  cfg.Signals.TTL.Duration,
		Bookmaker:  cfg.Analyzer.Bookmaker,
	}, a.logger)

	return &pipelineParts{
		engine:     engine,
		agent:      agent,
		normalizer: normalizer,
		metrics:    m,
	}
}

// FullMode runs the complete system: the evaluation pipeline with
// persistence, cold-storage archival, and the API server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	parts := a.buildPipeline(deps, deps.SignalStore)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(
			deps.Archiver,
			deps.Locks,
			a.cfg.Pipeline.ArchiveRetentionDays,
			a.logger,
		)
	}

	orch := pipeline.NewOrchestrator(
		parts.engine,
		archiver,
		a.cfg.Pipeline.TickInterval.Duration,
		a.cfg.Pipeline.ArchiveInterval.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, parts)
	}

	return waitGroup(g)
}

// MonitorMode runs the evaluation pipeline without persistence or archival:
// signals are evaluated, broadcast, and learned from, but nothing is written
// to Postgres or object storage.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	parts := a.buildPipeline(deps, nil)

	orch := pipeline.NewOrchestrator(
		parts.engine,
		nil,
		a.cfg.Pipeline.TickInterval.Duration,
		a.cfg.Pipeline.ArchiveInterval.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, parts)
	}

	return waitGroup(g)
}

// ServerMode serves the API from Redis alone: another instance runs the
// pipeline, this one fans its broadcasts out. Endpoints that need an
// in-process pipeline answer 503.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, nil)
	return waitGroup(g)
}

// pingerFunc adapts a plain connectivity check to the handler.Pinger
// interface.
type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// startServer assembles the WebSocket hub and HTTP server and registers their
// goroutines on g. parts is nil in server mode; the status, outcome, and
// metrics surfaces then degrade gracefully.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, parts *pipelineParts) {
	hub := ws.NewHub(deps.Bus, deps.Snapshots, a.logger)

	health := map[string]handler.Pinger{
		"redis": deps.Redis,
	}
	if deps.Postgres != nil {
		health["postgres"] = deps.Postgres.Pool()
	}
	if deps.S3 != nil {
		health["s3"] = pingerFunc(deps.S3.Health)
	}

	var (
		agentStats handler.AgentStats
		clockStats handler.ClockStats
		reporter   handler.OutcomeReporter
		m          *metrics.EngineMetrics
	)
	if parts != nil {
		agentStats = parts.agent
		clockStats = parts.normalizer
		reporter = parts.engine
		m = parts.metrics
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(health, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, time.Now(), agentStats, clockStats),
		Signals: handler.NewSignalsHandler(deps.Snapshots, reporter, deps.Bus, pipeline.StreamSignals, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerSecond: a.cfg.Server.RateLimitPerSecond,
		RateLimitBurst:     a.cfg.Server.RateLimitBurst,
	}, handlers, hub, m, a.logger)

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// waitGroup waits for all goroutines and treats context cancellation as a
// clean stop.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
