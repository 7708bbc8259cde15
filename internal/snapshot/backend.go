package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"StockKeeper/internal/inventory"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

var ErrNoSnapshot = errors.New("no snapshot stored")

// Backend stores one whole-table snapshot. Save always replaces what was
// there before.
type Backend interface {
	Save(ctx context.Context, snap inventory.Snapshot) error
	Load(ctx context.Context) (inventory.Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
	String() string
}

// Open picks a backend from target: postgres://, mysql:// and redis://
// URLs select the matching server, anything else is a file path.
func Open(ctx context.Context, target string) (Backend, error) {
	switch {
	case strings.HasPrefix(target, "postgres://"), strings.HasPrefix(target, "postgresql://"):
		return OpenPostgres(ctx, target)
	case strings.HasPrefix(target, "mysql://"):
		return OpenMySQL(ctx, strings.TrimPrefix(target, "mysql://"))
	case strings.HasPrefix(target, "redis://"), strings.HasPrefix(target, "rediss://"):
		return OpenRedis(ctx, target)
	default:
		if target == "" {
			target = inventory.DefaultPath
		}
		return NewFile(target), nil
	}
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
