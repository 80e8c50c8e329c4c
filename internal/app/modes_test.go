package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/hlchallenge/internal/config"
	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

func TestChallengeConfigCap(t *testing.T) {
	cc := challengeConfig(config.ChallengeConfig{TargetBuilder: "0xaa", Workers: 4})
	if cc.MaxStartCapital != nil {
		t.Errorf("zero cap should mean no cap, got %v", *cc.MaxStartCapital)
	}
	cc = challengeConfig(config.ChallengeConfig{MaxStartCapital: 1000})
	if cc.MaxStartCapital == nil || *cc.MaxStartCapital != 1000 {
		t.Errorf("cap = %v", cc.MaxStartCapital)
	}
}

func TestRefreshQueries(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	qs := refreshQueries(config.RefreshConfig{
		Metrics:     []string{"pnl", "sharpe", "returnPct"},
		Coin:        "ETH",
		BuilderOnly: true,
	}, logger)
	if len(qs) != 2 {
		t.Fatalf("queries = %+v", qs)
	}
	if qs[0].Metric != domain.MetricPnL || qs[1].Metric != domain.MetricReturnPct {
		t.Errorf("metrics = %s, %s", qs[0].Metric, qs[1].Metric)
	}
	if qs[1].Coin != "ETH" || !qs[1].BuilderOnly {
		t.Errorf("query = %+v", qs[1])
	}
}

func TestBuildServicesWithoutPostgres(t *testing.T) {
	cfg := config.Defaults()
	cfg.Challenge.TargetBuilder = "0x00000000000000000000000000000000000000aa"
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svcs := a.buildServices(&Dependencies{})
	if svcs.participants != nil {
		t.Error("participant service needs a store")
	}
	if svcs.board == nil || svcs.pnl == nil || svcs.positions == nil || svcs.trades == nil {
		t.Error("core services must always be built")
	}
}
