package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"supervisor-console/internal/model"
)

// DefaultListLimit caps ListTransitions when no limit is given.
const DefaultListLimit = 50

// Store defines the interface for all journal operations.
type Store interface {
	RecordTransition(ctx context.Context, ev *model.FlowEvent) error
	ListTransitions(ctx context.Context, supervisorID string, limit int) ([]model.FlowEvent, error)
	PruneTransitions(ctx context.Context, before time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// RecordTransition appends one row to the journal.
func (s *gormStore) RecordTransition(ctx context.Context, ev *model.FlowEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to record transition %s -> %s: %w", ev.FromState, ev.ToState, err)
	}
	return nil
}

// ListTransitions returns the newest rows first. An empty supervisorID lists
// every supervisor.
func (s *gormStore) ListTransitions(ctx context.Context, supervisorID string, limit int) ([]model.FlowEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := s.db.WithContext(ctx).Model(&model.FlowEvent{})
	if supervisorID != "" {
		q = q.Where("supervisor_id = ?", supervisorID)
	}

	events := []model.FlowEvent{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return events, nil
}

// PruneTransitions deletes rows created before the cutoff and reports how many went.
func (s *gormStore) PruneTransitions(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.FlowEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune transitions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// nopStore is used when the journal is disabled.
type nopStore struct{}

// NewNopStore returns a Store that keeps nothing.
func NewNopStore() Store {
	return nopStore{}
}

func (nopStore) RecordTransition(context.Context, *model.FlowEvent) error { return nil }

func (nopStore) ListTransitions(context.Context, string, int) ([]model.FlowEvent, error) {
	return []model.FlowEvent{}, nil
}

func (nopStore) PruneTransitions(context.Context, time.Time) (int64, error) { return 0, nil }
