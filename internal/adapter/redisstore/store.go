// Package redisstore implements tracker.VisitStore on Redis.
//
// Key layout:
//
//	visit:<id>       JSON-encoded visit
//	visits:open      hash: exact coordinate key → open visit ID
//	points           list of JSON-encoded location points
//	settings         hash: persisted tracking flags
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/visit-tracker/internal/config"
	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

const (
	visitKeyPrefix = "visit:"
	openVisitsKey  = "visits:open"
	pointsKey      = "points"
	settingsKey    = "settings"
)

// Store persists visits, location points, and settings in Redis.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewStore connects to the configured Redis instance and pings it.
func NewStore(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Store{rdb: rdb, logger: logger}, nil
}

// UpsertVisit writes the visit and maintains the open-visit index.
func (s *Store) UpsertVisit(ctx context.Context, v domain.Visit) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize visit: %w", err)
	}
	if err := s.rdb.Set(ctx, visitKeyPrefix+v.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("set visit: %w", err)
	}

	coordKey := v.Coordinate.Key()
	if v.Open() {
		return s.rdb.HSet(ctx, openVisitsKey, coordKey, v.ID).Err()
	}
	return s.rdb.HDel(ctx, openVisitsKey, coordKey).Err()
}

// GetVisit loads a visit by ID, returning tracker.ErrVisitNotFound when absent.
func (s *Store) GetVisit(ctx context.Context, id string) (domain.Visit, error) {
	data, err := s.rdb.Get(ctx, visitKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Visit{}, tracker.ErrVisitNotFound
	}
	if err != nil {
		return domain.Visit{}, fmt.Errorf("get visit: %w", err)
	}

	var v domain.Visit
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.Visit{}, fmt.Errorf("decode visit: %w", err)
	}
	return v, nil
}

// OpenVisitAt looks up the open visit at the exact coordinate.
func (s *Store) OpenVisitAt(ctx context.Context, c domain.Coordinate) (domain.Visit, error) {
	id, err := s.rdb.HGet(ctx, openVisitsKey, c.Key()).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Visit{}, tracker.ErrVisitNotFound
	}
	if err != nil {
		return domain.Visit{}, fmt.Errorf("lookup open visit: %w", err)
	}
	return s.GetVisit(ctx, id)
}

// OpenVisit returns the open visit at any coordinate. The open-visit index
// holds at most one entry while the tracker's invariant is intact, but a
// stale entry from a previous run is returned too so the tracker can close it.
func (s *Store) OpenVisit(ctx context.Context) (domain.Visit, error) {
	ids, err := s.rdb.HVals(ctx, openVisitsKey).Result()
	if err != nil {
		return domain.Visit{}, fmt.Errorf("list open visits: %w", err)
	}
	if len(ids) == 0 {
		return domain.Visit{}, tracker.ErrVisitNotFound
	}
	return s.GetVisit(ctx, ids[0])
}

// CreateLocationPoint appends one accepted fix. Points are immutable and
// only ever removed in bulk by DeleteAll.
func (s *Store) CreateLocationPoint(ctx context.Context, p domain.LocationPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("serialize location point: %w", err)
	}
	return s.rdb.RPush(ctx, pointsKey, data).Err()
}

// DeleteAll removes all visits, the open-visit index, and all points.
// Settings survive a data purge.
func (s *Store) DeleteAll(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, visitKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete visit key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan visit keys: %w", err)
	}
	return s.rdb.Del(ctx, openVisitsKey, pointsKey).Err()
}

// SaveSettings persists the tracking flags.
func (s *Store) SaveSettings(ctx context.Context, set tracker.Settings) error {
	return s.rdb.HSet(ctx, settingsKey,
		"tracking_enabled", boolField(set.TrackingEnabled),
		"continuous_enabled", boolField(set.ContinuousEnabled),
	).Err()
}

// LoadSettings restores the tracking flags; missing fields default to false.
func (s *Store) LoadSettings(ctx context.Context) (tracker.Settings, error) {
	fields, err := s.rdb.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		return tracker.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return tracker.Settings{
		TrackingEnabled:   fields["tracking_enabled"] == "1",
		ContinuousEnabled: fields["continuous_enabled"] == "1",
	}, nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
