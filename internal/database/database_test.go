package database

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Host: "db.test", Port: "5433", User: "app", Password: "pw",
		DBName: "slotcal", SSLMode: "require",
	}
	got := cfg.DSN()
	want := "host=db.test port=5433 user=app password=pw dbname=slotcal sslmode=require"
	if got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}

func TestConnectUnreachableDatabaseFails(t *testing.T) {
	// Port 1 refuses connections; the dial succeeds lazily and only the
	// ping observes the failure.
	cfg, err := pgxpool.ParseConfig("host=127.0.0.1 port=1 user=u password=p dbname=d sslmode=disable connect_timeout=1")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	pool, err := connect(context.Background(), cfg, 1, 0)
	if err == nil {
		pool.Close()
		t.Fatal("expected error for unreachable database")
	}
	if pool != nil {
		t.Errorf("got a pool alongside the error")
	}
	if !strings.Contains(err.Error(), "connect to postgres") {
		t.Errorf("error = %v, want it wrapped as a connect failure", err)
	}
}
