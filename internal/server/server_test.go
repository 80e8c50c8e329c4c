package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/server/handler"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

const (
	builder = "0x00000000000000000000000000000000000000aa"
	alice   = "0x0000000000000000000000000000000000000a11"
)

type staticFills map[string][]domain.RawFill

func (s staticFills) FetchFills(_ context.Context, q domain.FillQuery) ([]domain.RawFill, error) {
	return s[q.User], nil
}

type flatEquity float64

func (e flatEquity) FetchEquityAt(context.Context, string, int64) (float64, error) {
	return float64(e), nil
}

func fill(tid int64, side, sz, px, start, closed, via string) domain.RawFill {
	t := 1_700_000_000_000 + tid
	f := domain.RawFill{
		Coin: "ETH", Px: px, Sz: sz, Side: side, Time: &t, StartPosition: start,
		Fee: "0.1", ClosedPnl: closed, Tid: tid,
	}
	if via != "" {
		f.Builder = via
		f.BuilderFee = "0.05"
	}
	return f
}

func testServer(t *testing.T, apiKey string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := staticFills{alice: {
		fill(1, "B", "100", "50", "0", "0", builder),
		fill(2, "B", "50", "52", "100", "0", ""),
		fill(3, "A", "150", "55", "150", "750", builder),
	}}
	cfg := service.ChallengeConfig{TargetBuilder: builder, Users: []string{alice}}

	return Routes(Config{APIKey: apiKey}, Handlers{
		Health:      handler.NewHealthHandler(nil, logger),
		Positions:   handler.NewPositionHandler(service.NewPositionService(src, cfg, logger), logger),
		PnL:         handler.NewPnLHandler(service.NewPnLService(src, flatEquity(10_000), cfg, logger), logger),
		Trades:      handler.NewTradeHandler(service.NewTradeService(src, cfg, logger), logger),
		Leaderboard: handler.NewLeaderboardHandler(service.NewLeaderboardService(src, flatEquity(10_000), nil, nil, cfg, logger), logger),
	}, nil, nil, logger)
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode %q: %v", target, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestPositionHistoryEndToEnd(t *testing.T) {
	h := testServer(t, "")
	var snaps []map[string]any
	if code := get(t, h, "/v1/positions/history?user="+alice, &snaps); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0]["netSize"] != "100" || snaps[0]["avgEntryPx"] != "50" {
		t.Errorf("unexpected open snapshot %v", snaps[0])
	}
	if snaps[1]["netSize"] != "150" || snaps[2]["netSize"] != "0" || snaps[2]["avgEntryPx"] != "0" {
		t.Errorf("unexpected snapshots %v", snaps)
	}
}

func TestPnLEndToEnd(t *testing.T) {
	h := testServer(t, "")
	var body map[string]any
	if code := get(t, h, "/v1/pnl?user="+alice+"&maxStartCapital=1000", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["realizedPnl"] != 750.0 || body["tradeCount"] != 3.0 || body["returnPct"] != 75.0 {
		t.Errorf("unexpected pnl %v", body)
	}
}

func TestLeaderboardEndToEnd(t *testing.T) {
	h := testServer(t, "")
	var rows []map[string]any
	if code := get(t, h, "/v1/leaderboard?metric=volume", &rows); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(rows) != 1 || rows[0]["rank"] != 1.0 || rows[0]["metricValue"] != 15850.0 || rows[0]["user"] != alice {
		t.Errorf("unexpected leaderboard %v", rows)
	}
	if code := get(t, h, "/v1/leaderboard/latest", nil); code != http.StatusNotFound {
		t.Errorf("latest without a store: status = %d, want 404", code)
	}
}

func TestMissingUserIs400(t *testing.T) {
	h := testServer(t, "")
	for _, path := range []string{"/v1/positions/history", "/v1/pnl", "/v1/trades"} {
		if code := get(t, h, path, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, code)
		}
	}
}

func TestAuthGuardsAPIButNotHealth(t *testing.T) {
	h := testServer(t, "key")
	if code := get(t, h, "/api/health", nil); code != http.StatusOK {
		t.Errorf("health status = %d", code)
	}
	if code := get(t, h, "/v1/trades?user="+alice, nil); code != http.StatusUnauthorized {
		t.Errorf("trades status = %d, want 401", code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := testServer(t, "")
	if code := get(t, h, "/v1/nope", nil); code != http.StatusNotFound {
		t.Errorf("status = %d", code)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/pnl", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

type memParticipants struct {
	users []domain.Participant
}

func (m *memParticipants) Register(_ context.Context, p domain.Participant) error {
	m.users = append(m.users, p)
	return nil
}

func (m *memParticipants) Deactivate(context.Context, string) error { return domain.ErrNotFound }

func (m *memParticipants) ListActive(context.Context) ([]domain.Participant, error) {
	return m.users, nil
}

func TestParticipantWritesNeedAPIKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &memParticipants{}
	handlers := Handlers{
		Health:       handler.NewHealthHandler(nil, logger),
		Participants: handler.NewParticipantHandler(service.NewParticipantService(store, nil, nil, logger), logger),
	}
	body := `{"user":"` + alice + `"}`

	open := Routes(Config{}, handlers, nil, nil, logger)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/participants", strings.NewReader(body)))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("keyless POST status = %d, want 405", rec.Code)
	}

	guarded := Routes(Config{APIKey: "key"}, handlers, nil, nil, logger)
	req := httptest.NewRequest(http.MethodPost, "/v1/participants", strings.NewReader(body))
	req.Header.Set("X-API-Key", "key")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated || len(store.users) != 1 {
		t.Fatalf("status = %d, users = %v", rec.Code, store.users)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/participants", nil)
	req.Header.Set("X-API-Key", "key")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), alice) {
		t.Errorf("list status = %d body = %s", rec.Code, rec.Body)
	}
}
