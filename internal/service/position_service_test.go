package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

func TestPositionHistoryMixedLifecycle(t *testing.T) {
	src := &fakeFills{byUser: map[string][]domain.RawFill{
		"u1": {
			raw("ETH", 3, "A", "150", "150", "55", "650", "0", viaTarget),
			raw("ETH", 1, "B", "0", "100", "50", "0", "0", viaTarget),
			raw("ETH", 2, "B", "100", "50", "52", "0", "0"),
			raw("BTC", 2, "B", "0", "1", "30000", "0", "0", viaTarget),
		},
	}}
	svc := NewPositionService(src, ChallengeConfig{TargetBuilder: target}, discardLogger())

	snaps, err := svc.History(context.Background(), UserQuery{User: "u1", Coin: "ETH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 ETH snapshots, got %d", len(snaps))
	}
	if snaps[1].NetSize != 150 || snaps[2].NetSize != 0 {
		t.Errorf("unexpected sizes: %+v", snaps)
	}
	for _, s := range snaps {
		if s.Tainted {
			t.Errorf("taint must not be reported without builderOnly: %+v", s)
		}
	}
}

func TestPositionHistoryBuilderOnly(t *testing.T) {
	src := &fakeFills{byUser: map[string][]domain.RawFill{
		"u1": {
			raw("ETH", 1, "B", "0", "100", "50", "0", "0", viaTarget),
			raw("ETH", 2, "B", "100", "50", "52", "0", "0"),
			raw("ETH", 3, "A", "150", "150", "55", "650", "0", viaTarget),
		},
	}}
	svc := NewPositionService(src, ChallengeConfig{TargetBuilder: target}, discardLogger())

	snaps, err := svc.History(context.Background(), UserQuery{User: "u1", BuilderOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Tainted || !snaps[1].Tainted {
		t.Errorf("unexpected taint flags: %+v", snaps)
	}
}

func TestPositionHistoryEmpty(t *testing.T) {
	svc := NewPositionService(&fakeFills{}, ChallengeConfig{TargetBuilder: target}, discardLogger())
	snaps, err := svc.History(context.Background(), UserQuery{User: "nobody"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snaps == nil || len(snaps) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", snaps)
	}
}

func TestPositionHistoryRejectsMalformedBatch(t *testing.T) {
	bad := raw("ETH", 2, "X", "0", "1", "1", "0", "0")
	src := &fakeFills{byUser: map[string][]domain.RawFill{
		"u1": {raw("ETH", 1, "B", "0", "1", "1", "0", "0"), bad},
	}}
	svc := NewPositionService(src, ChallengeConfig{TargetBuilder: target}, discardLogger())

	_, err := svc.History(context.Background(), UserQuery{User: "u1"})
	if !errors.Is(err, domain.ErrUnknownSide) {
		t.Fatalf("expected unknown side error, got %v", err)
	}
	var be *domain.BatchError
	if !errors.As(err, &be) || be.Index != 1 {
		t.Errorf("expected batch index 1, got %v", err)
	}
}

func TestPositionHistoryValidatesQuery(t *testing.T) {
	svc := NewPositionService(&fakeFills{}, ChallengeConfig{}, discardLogger())
	if _, err := svc.History(context.Background(), UserQuery{}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected invalid query for missing user, got %v", err)
	}
	q := UserQuery{User: "u1", FromMs: i64(10), ToMs: i64(5)}
	if _, err := svc.History(context.Background(), q); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected invalid query for inverted window, got %v", err)
	}
}

func TestPositionHistoryUpstreamError(t *testing.T) {
	src := &fakeFills{errUser: map[string]error{"u1": domain.ErrUpstream}}
	svc := NewPositionService(src, ChallengeConfig{}, discardLogger())
	if _, err := svc.History(context.Background(), UserQuery{User: "u1"}); !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestTradeListBuilderOnly(t *testing.T) {
	src := &fakeFills{byUser: map[string][]domain.RawFill{
		"u1": {
			raw("ETH", 2, "B", "1", "1", "10", "0", "0.1"),
			raw("ETH", 1, "B", "0", "1", "10", "0", "0.1", viaTarget),
			raw("SOL", 3, "A", "0", "5", "100", "0", "0.2", viaTarget),
		},
	}}
	svc := NewTradeService(src, ChallengeConfig{TargetBuilder: target}, discardLogger())

	all, err := svc.List(context.Background(), UserQuery{User: "u1"})
	if err != nil || len(all) != 3 || all[0].TimeMs != 1 {
		t.Fatalf("unexpected all-trades result: %v %+v", err, all)
	}
	attributed, err := svc.List(context.Background(), UserQuery{User: "u1", BuilderOnly: true, Coin: "ETH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attributed) != 1 || !attributed[0].IsTargetBuilder {
		t.Errorf("expected one attributed ETH trade, got %+v", attributed)
	}
	if svc.TargetBuilder() != target {
		t.Errorf("unexpected target label %q", svc.TargetBuilder())
	}
}
