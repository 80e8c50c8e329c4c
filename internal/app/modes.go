package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hlchallenge/internal/config"
	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/server"
	"github.com/alanyoungcy/hlchallenge/internal/server/handler"
	"github.com/alanyoungcy/hlchallenge/internal/server/ws"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

const shutdownTimeout = 5 * time.Second

// services holds the business services shared by every mode.
type services struct {
	positions    *service.PositionService
	pnl          *service.PnLService
	trades       *service.TradeService
	board        *service.LeaderboardService
	participants *service.ParticipantService
}

// challengeConfig translates the [challenge] section into service settings.
func challengeConfig(cfg config.ChallengeConfig) service.ChallengeConfig {
	out := service.ChallengeConfig{
		TargetBuilder: cfg.TargetBuilder,
		Workers:       cfg.Workers,
		Users:         cfg.Users,
	}
	if cfg.MaxStartCapital > 0 {
		capital := cfg.MaxStartCapital
		out.MaxStartCapital = &capital
	}
	return out
}

// refreshQueries expands the [refresh] section into one query per metric.
// Unknown metric names are rejected by Config.Validate.
func refreshQueries(cfg config.RefreshConfig, logger *slog.Logger) []service.LeaderboardQuery {
	queries := make([]service.LeaderboardQuery, 0, len(cfg.Metrics))
	for _, name := range cfg.Metrics {
		metric, err := domain.ParseMetric(name)
		if err != nil {
			logger.Warn("app: skipping refresh metric", slog.String("metric", name), slog.String("error", err.Error()))
			continue
		}
		queries = append(queries, service.LeaderboardQuery{
			Coin:        cfg.Coin,
			Metric:      metric,
			BuilderOnly: cfg.BuilderOnly,
		})
	}
	return queries
}

func (a *App) buildServices(deps *Dependencies) *services {
	cc := challengeConfig(a.cfg.Challenge)
	svcs := &services{
		positions: service.NewPositionService(deps.Fills, cc, a.logger),
		pnl:       service.NewPnLService(deps.Fills, deps.Equity, cc, a.logger),
		trades:    service.NewTradeService(deps.Fills, cc, a.logger),
		board:     service.NewLeaderboardService(deps.Fills, deps.Equity, deps.Participants, deps.Runs, cc, a.logger),
	}
	if deps.Participants != nil {
		var cache service.FillInvalidator
		if deps.FillCache != nil {
			cache = deps.FillCache
		}
		svcs.participants = service.NewParticipantService(deps.Participants, deps.Audit, cache, a.logger)
	}
	return svcs
}

// seedParticipants registers the configured users in Postgres so the stored
// roster is never narrower than the config file.
func (a *App) seedParticipants(ctx context.Context, svcs *services) {
	if svcs.participants == nil || len(a.cfg.Challenge.Users) == 0 {
		return
	}
	if err := svcs.participants.Seed(ctx, a.cfg.Challenge.Users); err != nil {
		a.logger.WarnContext(ctx, "app: seeding participants failed", slog.String("error", err.Error()))
	}
}

func (a *App) newRefresher(deps *Dependencies, svcs *services) *service.LeaderboardRefresher {
	return service.NewLeaderboardRefresher(svcs.board, service.RefresherDeps{
		Runs:     deps.Runs,
		Locks:    deps.LockManager,
		Bus:      deps.SignalBus,
		Archiver: deps.Archiver,
		Alerts:   deps.Notifier,
		Audit:    deps.Audit,
	}, service.RefreshConfig{
		Interval: a.cfg.Refresh.Interval.Duration,
		LockKey:  a.cfg.Refresh.LockKey,
		LockTTL:  a.cfg.Refresh.LockTTL.Duration,
		Queries:  refreshQueries(a.cfg.Refresh, a.logger),
	}, a.logger)
}

// ServerMode serves the HTTP API. The leaderboard refresher runs alongside
// when refresh.enabled is set.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	return a.serve(ctx, deps, a.cfg.Refresh.Enabled)
}

// FullMode serves the HTTP API and always runs the leaderboard refresher.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	return a.serve(ctx, deps, true)
}

// RefreshMode recomputes every configured leaderboard once and returns.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	svcs := a.buildServices(deps)
	a.seedParticipants(ctx, svcs)

	a.logger.InfoContext(ctx, "refresh mode: computing leaderboards",
		slog.Int("queries", len(a.cfg.Refresh.Metrics)),
	)
	return a.newRefresher(deps, svcs).RefreshOnce(ctx)
}

func (a *App) serve(ctx context.Context, deps *Dependencies, withRefresher bool) error {
	svcs := a.buildServices(deps)
	a.seedParticipants(ctx, svcs)

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Channels:       []string{service.LeaderboardChannel},
			AllowedOrigins: a.cfg.Server.CORSOrigins,
			StartedAt:      time.Now().UTC(),
		}, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "app: redis disabled, websocket updates off")
	}

	if withRefresher {
		refresher := a.newRefresher(deps, svcs)
		g.Go(func() error {
			return refresher.Run(ctx)
		})
	}

	a.startHTTPServer(ctx, g, deps, svcs, hub)
	return g.Wait()
}

// startHTTPServer adds the API server and its shutdown watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services, hub *ws.Hub) {
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Health, a.logger),
		Positions:   handler.NewPositionHandler(svcs.positions, a.logger),
		PnL:         handler.NewPnLHandler(svcs.pnl, a.logger),
		Trades:      handler.NewTradeHandler(svcs.trades, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(svcs.board, a.logger),
	}
	if svcs.participants != nil {
		handlers.Participants = handler.NewParticipantHandler(svcs.participants, a.logger)
	}
	if deps.Audit != nil {
		handlers.Audit = handler.NewAuditHandler(deps.Audit, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
