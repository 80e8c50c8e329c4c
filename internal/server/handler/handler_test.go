package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubPositions struct {
	got   service.UserQuery
	snaps []domain.Snapshot
	err   error
}

func (s *stubPositions) History(_ context.Context, q service.UserQuery) ([]domain.Snapshot, error) {
	s.got = q
	return s.snaps, s.err
}

type stubPnL struct {
	got service.PnLQuery
	sum domain.PnLSummary
	err error
}

func (s *stubPnL) Summary(_ context.Context, q service.PnLQuery) (domain.PnLSummary, error) {
	s.got = q
	return s.sum, s.err
}

type stubTrades struct {
	fills []domain.Fill
}

func (s *stubTrades) List(context.Context, service.UserQuery) ([]domain.Fill, error) {
	return s.fills, nil
}

func (s *stubTrades) TargetBuilder() string { return "0xbuilder" }

type stubBoard struct {
	got    service.LeaderboardQuery
	run    domain.LeaderboardRun
	err    error
	latest error
}

func (s *stubBoard) Compute(_ context.Context, q service.LeaderboardQuery) (domain.LeaderboardRun, error) {
	s.got = q
	return s.run, s.err
}

func (s *stubBoard) Latest(context.Context, domain.Metric, bool) (domain.LeaderboardRun, error) {
	return s.run, s.latest
}

func serve(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestPositionHistoryTaintOnlyWhenBuilderOnly(t *testing.T) {
	svc := &stubPositions{snaps: []domain.Snapshot{
		{TimeMs: 1, Coin: "ETH", NetSize: 100, AvgEntryPx: 50},
		{TimeMs: 2, Coin: "ETH", NetSize: 150, AvgEntryPx: 50.666666666666664, Tainted: true},
		{TimeMs: 3, Coin: "ETH", NetSize: 0, AvgEntryPx: 0, Tainted: true},
	}}
	h := NewPositionHandler(svc, discard())

	rec := serve(h.History, "/v1/positions/history?user=0xabc&coin=ETH&fromMs=1&toMs=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	plain := decode[[]map[string]any](t, rec)
	if len(plain) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(plain))
	}
	if _, ok := plain[1]["tainted"]; ok {
		t.Error("tainted must be omitted without builderOnly")
	}
	if plain[0]["netSize"] != "100" || plain[0]["avgEntryPx"] != "50" || plain[2]["avgEntryPx"] != "0" {
		t.Errorf("unexpected numeric encoding %v", plain)
	}
	if svc.got.User != "0xabc" || svc.got.Coin != "ETH" || *svc.got.FromMs != 1 || *svc.got.ToMs != 5 {
		t.Errorf("unexpected query %+v", svc.got)
	}

	rec = serve(h.History, "/v1/positions/history?user=0xabc&builderOnly=true")
	filtered := decode[[]map[string]any](t, rec)
	if filtered[0]["tainted"] != false || filtered[1]["tainted"] != true {
		t.Errorf("unexpected taint flags %v", filtered)
	}
}

func TestPositionHistoryEmptyIsArray(t *testing.T) {
	h := NewPositionHandler(&stubPositions{}, discard())
	rec := serve(h.History, "/v1/positions/history?user=0xabc")
	if rec.Body.String() != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func TestBadParamsAre400(t *testing.T) {
	h := NewPositionHandler(&stubPositions{}, discard())
	for _, target := range []string{
		"/v1/positions/history?user=0xabc&fromMs=abc",
		"/v1/positions/history?user=0xabc&toMs=-1",
		"/v1/positions/history?user=0xabc&builderOnly=maybe",
	} {
		if rec := serve(h.History, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("svc: %w", domain.ErrInvalidQuery), http.StatusBadRequest},
		{&domain.InvalidMetricRequestError{Reason: "no capital base"}, http.StatusUnprocessableEntity},
		{&domain.BatchError{Index: 3, Err: &domain.MalformedFillError{Field: "px", Reason: "missing"}}, http.StatusBadGateway},
		{&domain.BatchError{Index: 0, Err: &domain.UnknownSideError{Side: "X"}}, http.StatusBadGateway},
		{fmt.Errorf("hl: %w", domain.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("hl: %w", domain.ErrRateLimited), http.StatusTooManyRequests},
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewPositionHandler(&stubPositions{err: tt.err}, discard())
		rec := serve(h.History, "/v1/positions/history?user=0xabc")
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestInternalErrorsAreNotEchoed(t *testing.T) {
	h := NewPositionHandler(&stubPositions{err: errors.New("dial tcp 10.0.0.1: secret detail")}, discard())
	rec := serve(h.History, "/v1/positions/history?user=0xabc")
	body := decode[map[string]string](t, rec)
	if body["error"] != "failed to load position history" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestPnLSummary(t *testing.T) {
	ret := 12.5
	svc := &stubPnL{sum: domain.PnLSummary{
		User: "0xabc", RealizedPnl: 125, FeesPaid: 3, Volume: 2000, TradeCount: 4,
		ReturnPct: &ret, Tainted: true, BuilderOnly: true,
	}}
	h := NewPnLHandler(svc, discard())

	rec := serve(h.Summary, "/v1/pnl?user=0xabc&builderOnly=true&maxStartCapital=1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	if body["realizedPnl"] != 125.0 || body["returnPct"] != 12.5 || body["tradeCount"] != 4.0 || body["tainted"] != true {
		t.Errorf("unexpected body %v", body)
	}
	if svc.got.MaxStartCapital == nil || *svc.got.MaxStartCapital != 1000 || !svc.got.BuilderOnly {
		t.Errorf("unexpected query %+v", svc.got)
	}

	svc.sum.BuilderOnly = false
	svc.sum.ReturnPct = nil
	body = decode[map[string]any](t, serve(h.Summary, "/v1/pnl?user=0xabc"))
	if _, ok := body["tainted"]; ok {
		t.Error("tainted must be omitted without builderOnly")
	}
	if v, ok := body["returnPct"]; !ok || v != nil {
		t.Errorf("returnPct should be null, got %v", v)
	}
}

func TestPnLRejectsBadCapital(t *testing.T) {
	h := NewPnLHandler(&stubPnL{}, discard())
	if rec := serve(h.Summary, "/v1/pnl?user=0xabc&maxStartCapital=lots"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTradesBuilderLabel(t *testing.T) {
	fee := 0.5
	svc := &stubTrades{fills: []domain.Fill{
		{Coin: "BTC", TimeMs: 10, TradeID: 1, Side: domain.SideBuy, Size: 0.01, Price: 65000, Fee: 1.2, Builder: "0xbuilder", BuilderFee: &fee, IsTargetBuilder: true},
		{Coin: "BTC", TimeMs: 11, TradeID: 2, Side: domain.SideSell, Size: 0.01, Price: 65100, ClosedPnl: 1},
	}}
	h := NewTradeHandler(svc, discard())

	rows := decode[[]map[string]any](t, serve(h.List, "/v1/trades?user=0xabc"))
	if len(rows) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(rows))
	}
	if rows[0]["builder"] != "0xbuilder" || rows[0]["side"] != "B" || rows[0]["sz"] != "0.01" {
		t.Errorf("unexpected first trade %v", rows[0])
	}
	if v, ok := rows[1]["builder"]; !ok || v != nil {
		t.Errorf("non-attributed trade should carry builder=null, got %v", v)
	}
	if rows[1]["side"] != "A" || rows[1]["closedPnl"] != "1" {
		t.Errorf("unexpected second trade %v", rows[1])
	}
}

func TestLeaderboardCompute(t *testing.T) {
	svc := &stubBoard{run: domain.LeaderboardRun{
		ID:     "run-1",
		Metric: domain.MetricVolume,
		Records: []domain.MetricRecord{
			{User: "0xb", MetricValue: 230, TradeCount: 2, Rank: 1},
			{User: "0xa", MetricValue: 210, TradeCount: 2, Rank: 2, Tainted: true},
		},
	}}
	h := NewLeaderboardHandler(svc, discard())

	rec := serve(h.Compute, "/v1/leaderboard?metric=volume&coin=ETH&builderOnly=1&maxStartCapital=500")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Run-ID") != "run-1" {
		t.Error("missing run id header")
	}
	rows := decode[[]leaderboardRow](t, rec)
	if len(rows) != 2 || rows[0].Rank != 1 || rows[0].User != "0xb" || !rows[1].Tainted {
		t.Errorf("unexpected rows %+v", rows)
	}
	if svc.got.Metric != domain.MetricVolume || svc.got.Coin != "ETH" || !svc.got.BuilderOnly || *svc.got.MaxStartCapital != 500 {
		t.Errorf("unexpected query %+v", svc.got)
	}
}

func TestLeaderboardDefaultsToPnL(t *testing.T) {
	svc := &stubBoard{}
	h := NewLeaderboardHandler(svc, discard())
	rec := serve(h.Compute, "/v1/leaderboard")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
	if svc.got.Metric != domain.MetricPnL {
		t.Errorf("metric = %q", svc.got.Metric)
	}
}

func TestLeaderboardUnknownMetricIs422(t *testing.T) {
	h := NewLeaderboardHandler(&stubBoard{}, discard())
	if rec := serve(h.Compute, "/v1/leaderboard?metric=sharpe"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLeaderboardLatest(t *testing.T) {
	svc := &stubBoard{run: domain.LeaderboardRun{
		ID: "run-9", Metric: domain.MetricPnL, ComputedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Records: []domain.MetricRecord{{User: "0xa", MetricValue: 5, TradeCount: 1, Rank: 1}},
	}}
	h := NewLeaderboardHandler(svc, discard())

	body := decode[latestResponse](t, serve(h.Latest, "/v1/leaderboard/latest"))
	if body.RunID != "run-9" || body.ComputedAt != "2025-02-01T00:00:00Z" || len(body.Entries) != 1 {
		t.Errorf("unexpected body %+v", body)
	}

	svc.latest = fmt.Errorf("store: %w", domain.ErrNotFound)
	if rec := serve(h.Latest, "/v1/leaderboard/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"redis":    PingFunc(func(context.Context) error { return nil }),
		"postgres": nil,
	}, discard())
	rec := serve(h.HealthCheck, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	comps := body["components"].(map[string]any)
	if comps["redis"] != "up" || len(comps) != 1 {
		t.Errorf("unexpected components %v", comps)
	}

	down := NewHealthHandler(map[string]Pinger{
		"s3": PingFunc(func(context.Context) error { return errors.New("no route") }),
	}, discard())
	if rec := serve(down.HealthCheck, "/api/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}
