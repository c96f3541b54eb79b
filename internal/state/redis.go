package state

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// alertRetention bounds how long recorded alerts stay queryable after
// their suppression window closes.
const (
	alertRetention   = 24 * time.Hour
	recentListKey    = "alerts:recent"
	recentListMaxLen = 500
)

// RedisStore persists state in Redis so baselines and the alert window
// survive node restarts. Keys:
//
//	baseline:<param>        JSON Baseline, no TTL
//	alert:<id>              JSON AlertEvent, retention TTL
//	dup:<type>:<hash>       alert id, TTL = suppression window
//	alerts:recent           list of alert ids, trimmed
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Baseline returns the rolling baseline for a parameter.
func (s *RedisStore) Baseline(ctx context.Context, param model.ParameterID) (*Baseline, error) {
	data, err := s.client.Get(ctx, baselineKey(param)).Result()
	if errors.Is(err, redis.Nil) {
		return &Baseline{Samples: []float64{}, UpdatedAt: time.Now().Unix()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}

	var baseline Baseline
	if err := json.Unmarshal([]byte(data), &baseline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal baseline: %w", err)
	}
	return &baseline, nil
}

// UpdateBaseline folds a fused value into the parameter's baseline.
func (s *RedisStore) UpdateBaseline(ctx context.Context, param model.ParameterID, value float64) error {
	baseline, err := s.Baseline(ctx, param)
	if err != nil {
		return err
	}

	foldSample(baseline, value, time.Now())

	data, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := s.client.Set(ctx, baselineKey(param), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

// RecordAlert records an emitted alert and opens its suppression window.
func (s *RedisStore) RecordAlert(ctx context.Context, alert *model.AlertEvent, window time.Duration) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	id := alert.ID.String()
	if err := s.client.Set(ctx, alertKey(alert.ID), data, alertRetention).Err(); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	if err := s.client.Set(ctx, dupKey(alert.Type, alert.Location), id, window).Err(); err != nil {
		return fmt.Errorf("failed to open suppression window: %w", err)
	}
	if err := s.client.LPush(ctx, recentListKey, id).Err(); err != nil {
		return fmt.Errorf("failed to record alert id: %w", err)
	}
	if err := s.client.LTrim(ctx, recentListKey, 0, recentListMaxLen-1).Err(); err != nil {
		return fmt.Errorf("failed to trim alert list: %w", err)
	}
	return nil
}

// FindDuplicate returns the alert an incoming candidate would duplicate.
func (s *RedisStore) FindDuplicate(ctx context.Context, typ model.AlertType, location string) (*model.AlertEvent, error) {
	id, err := s.client.Get(ctx, dupKey(typ, location)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check suppression window: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt suppression entry: %w", err)
	}
	return s.alertByID(ctx, parsed)
}

// MergeEvidence appends evidence to a previously recorded alert.
func (s *RedisStore) MergeEvidence(ctx context.Context, id uuid.UUID, evidence []model.DetectionEvidence) error {
	alert, err := s.alertByID(ctx, id)
	if err != nil {
		return err
	}
	if alert == nil {
		return fmt.Errorf("alert %s not found", id)
	}

	alert.Evidence = append(alert.Evidence, evidence...)
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := s.client.Set(ctx, alertKey(id), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to save merged alert: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit most recently recorded alerts, newest first.
func (s *RedisStore) RecentAlerts(ctx context.Context, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 || limit > recentListMaxLen {
		limit = recentListMaxLen
	}
	ids, err := s.client.LRange(ctx, recentListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	alerts := make([]model.AlertEvent, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		alert, err := s.alertByID(ctx, parsed)
		if err != nil || alert == nil {
			// Expired entries linger in the list until trimmed out.
			continue
		}
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) alertByID(ctx context.Context, id uuid.UUID) (*model.AlertEvent, error) {
	data, err := s.client.Get(ctx, alertKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	var alert model.AlertEvent
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return &alert, nil
}

func baselineKey(param model.ParameterID) string {
	return fmt.Sprintf("baseline:%s", param)
}

func alertKey(id uuid.UUID) string {
	return fmt.Sprintf("alert:%s", id)
}

func dupKey(typ model.AlertType, location string) string {
	hash := sha256.Sum256([]byte(location))
	return fmt.Sprintf("dup:%s:%x", typ, hash[:8])
}
