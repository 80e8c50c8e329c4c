package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  ClientConfig{DSN: "postgres://a@b/c", Host: "ignored"},
			want: "postgres://a@b/c",
		},
		{
			name: "defaults",
			cfg:  ClientConfig{Host: "db.example.co", Database: "postgres", User: "u", Password: "p"},
			want: "postgres://u:p@db.example.co:5432/postgres?sslmode=require",
		},
		{
			name: "explicit port and sslmode",
			cfg:  ClientConfig{Host: "localhost", Port: 6543, Database: "d", User: "u", Password: "p", SSLMode: "disable"},
			want: "postgres://u:p@localhost:6543/d?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.cfg); got != tt.want {
				t.Errorf("DSN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("migrations out of order: %v", names)
		}
	}
}

func TestAuditListQuery(t *testing.T) {
	q, args := auditListQuery(domain.ListOpts{})
	if q != "SELECT id, event, detail, created_at FROM audit_log ORDER BY created_at DESC" || len(args) != 0 {
		t.Errorf("unexpected bare query %q %v", q, args)
	}

	since := time.Unix(100, 0)
	q, args = auditListQuery(domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	want := "SELECT id, event, detail, created_at FROM audit_log WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	if q != want {
		t.Errorf("query = %q, want %q", q, want)
	}
	if len(args) != 3 || args[1] != 10 || args[2] != 20 {
		t.Errorf("unexpected args %v", args)
	}
}

func TestNormalizeWallet(t *testing.T) {
	got, err := normalizeWallet(" 0x00000000000000000000000000000000000000AA ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0x00000000000000000000000000000000000000aa" {
		t.Errorf("got %q", got)
	}
	if _, err := normalizeWallet("alice"); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}
