// Package redisregistry is an optional Redis-backed mirror of import
// job status (SPEC_FULL.md supplement over §9's bare in-memory
// registry): every Put is also written to Redis with a TTL, so job
// history survives a process restart for as long as the TTL allows and
// can be queried from another process. It is a supplement, not a
// replacement — jobregistry.Registry remains the primary store.
package redisregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ontocore/ontocore-server/internal/logger"
	"github.com/ontocore/ontocore-server/internal/rf2"
)

const keyPrefix = "ontocore:import-job:"

// Mirror writes job snapshots to Redis under a TTL. The zero value is
// not usable; construct with New.
type Mirror struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// New dials addr and pings it once so misconfiguration fails at
// startup rather than on the first import.
func New(addr string, ttl time.Duration, baseLog *logger.Logger) (*Mirror, error) {
	if addr == "" {
		return nil, fmt.Errorf("redisregistry: addr required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisregistry: ping: %w", err)
	}

	return &Mirror{
		log: baseLog.With("component", "redisregistry.Mirror"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func key(id string) string { return keyPrefix + id }

// Put writes job's current snapshot with the mirror's TTL, resetting
// the expiry on every call so an actively updated job never expires
// mid-run.
func (m *Mirror) Put(ctx context.Context, job *rf2.Job) error {
	if m == nil || m.rdb == nil || job == nil {
		return nil
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redisregistry: marshal job: %w", err)
	}
	if err := m.rdb.Set(ctx, key(job.ID.String()), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("redisregistry: set: %w", err)
	}
	return nil
}

// Get reads back a mirrored job snapshot, returning ok=false if it was
// never written or has expired.
func (m *Mirror) Get(ctx context.Context, id string) (*rf2.Job, bool, error) {
	if m == nil || m.rdb == nil {
		return nil, false, nil
	}
	raw, err := m.rdb.Get(ctx, key(id)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisregistry: get: %w", err)
	}
	var job rf2.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, false, fmt.Errorf("redisregistry: unmarshal job: %w", err)
	}
	return &job, true, nil
}

func (m *Mirror) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}
