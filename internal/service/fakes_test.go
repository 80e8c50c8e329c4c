package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

const target = "0x00000000000000000000000000000000000000aa"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func i64(v int64) *int64 { return &v }
func f64(v float64) *float64 { return &v }

type fakeFills struct {
	mu      sync.Mutex
	byUser  map[string][]domain.RawFill
	errUser map[string]error
	queries []domain.FillQuery
}

func (f *fakeFills) FetchFills(_ context.Context, q domain.FillQuery) ([]domain.RawFill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.errUser[q.User]; err != nil {
		return nil, err
	}
	return f.byUser[q.User], nil
}

type fakeEquity struct {
	equity map[string]float64
	err    error
	calls  []int64
	mu     sync.Mutex
}

func (f *fakeEquity) FetchEquityAt(_ context.Context, user string, ts int64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ts)
	if f.err != nil {
		return 0, f.err
	}
	return f.equity[user], nil
}

type fakeParticipants struct {
	users []string
	err   error
}

func (f *fakeParticipants) Register(_ context.Context, p domain.Participant) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, p.User)
	return nil
}

func (f *fakeParticipants) Deactivate(_ context.Context, user string) error {
	for i, u := range f.users {
		if u == user {
			f.users = append(f.users[:i], f.users[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeParticipants) ListActive(context.Context) ([]domain.Participant, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Participant, len(f.users))
	for i, u := range f.users {
		out[i] = domain.Participant{User: u, Active: true}
	}
	return out, nil
}

type fakeRuns struct {
	mu    sync.Mutex
	saved []domain.LeaderboardRun
}

func (f *fakeRuns) SaveRun(_ context.Context, run domain.LeaderboardRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, run)
	return nil
}

func (f *fakeRuns) LatestRun(_ context.Context, metric domain.Metric, builderOnly bool) (domain.LeaderboardRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].Metric == metric && f.saved[i].BuilderOnly == builderOnly {
			return f.saved[i], nil
		}
	}
	return domain.LeaderboardRun{}, domain.ErrNotFound
}

type fakeLocks struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{channel, payload})
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type fakeArchiver struct {
	runs []string
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, run domain.LeaderboardRun) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.runs = append(f.runs, run.ID)
	return "leaderboards/" + run.ID + ".jsonl", nil
}

type alert struct {
	event, title, message string
}

type fakeAlerter struct {
	alerts []alert
}

func (f *fakeAlerter) Notify(_ context.Context, event, title, message string) error {
	f.alerts = append(f.alerts, alert{event, title, message})
	return nil
}

type rawOpt func(*domain.RawFill)

func viaTarget(r *domain.RawFill) { r.Builder = target; r.BuilderFee = "0.01" }

func raw(coin string, t int64, side string, start, sz, px, pnl, fee string, opts ...rawOpt) domain.RawFill {
	r := domain.RawFill{
		Coin: coin, Time: i64(t), Tid: t, Side: side,
		StartPosition: start, Sz: sz, Px: px, ClosedPnl: pnl, Fee: fee,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeInvalidator struct {
	users []string
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, user string) error {
	f.users = append(f.users, user)
	return f.err
}
