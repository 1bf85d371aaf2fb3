package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("storage: key not found")

// Storage is the durable key/value store the cart and checkout sessions are
// persisted to. Writes are last-write-wins.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Options struct {
	Driver    string
	DSN       string
	RedisAddr string
}

func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Driver {
	case "memory":
		return NewMemory(), nil
	case "redis":
		r, err := OpenRedis(ctx, opts.RedisAddr)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "postgres", "sqlite", "":
		open := OpenSQLite
		if opts.Driver == "postgres" {
			open = OpenPostgres
		}
		db, err := open(ctx, opts.DSN)
		if err != nil {
			return nil, err
		}
		g, err := NewGorm(ctx, db)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}

type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

const pingKey = "storefront:ping"

// Ping checks the backend answers by reading a key that is never written.
func Ping(ctx context.Context, s Storage) error {
	if _, err := s.Get(ctx, pingKey); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
