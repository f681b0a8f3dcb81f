package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisRepoStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := NewRedisRepo(client)
	ctx := context.Background()

	if err := repo.SetStatus(ctx, "1700000000", "READY"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := repo.SetStatus(ctx, "1700000000", "COMPLETED"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err := repo.GetStatus(ctx, "1700000000")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %s", got)
	}

	if _, err := repo.GetStatus(ctx, "42"); err != redis.Nil {
		t.Errorf("expected redis.Nil for a missing key, got %v", err)
	}

	mr.FastForward(statusTTL + time.Second)
	if _, err := repo.GetStatus(ctx, "1700000000"); err != redis.Nil {
		t.Errorf("expected the status to expire, got %v", err)
	}
}
