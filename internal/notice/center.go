package notice

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"supervisor-console/internal/logger"
	"supervisor-console/internal/model"
)

// Center keeps recently published notices until their TTL runs out.
type Center struct {
	store *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCenter creates a Center whose notices live for ttl.
func NewCenter(ttl time.Duration) *Center {
	return &Center{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Publish stores n, filling in ID and CreatedAt when unset.
func (c *Center) Publish(n model.Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now().UTC()
	}
	c.store.Set(n.ID, n, c.ttl)

	entry := logger.Log.WithFields(logrus.Fields{
		"category": n.Category,
		"kind":     n.Kind,
	})
	if n.Cause != "" {
		entry = entry.WithField("cause", n.Cause)
	}
	if n.Kind == model.NoticeFailure {
		entry.Warn(n.Title)
	} else {
		entry.Info(n.Title)
	}
}

// List returns the live notices, oldest first.
func (c *Center) List() []model.Notice {
	items := c.store.Items()
	out := make([]model.Notice, 0, len(items))
	for _, item := range items {
		if n, ok := item.Object.(model.Notice); ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Dismiss removes a notice before it expires.
func (c *Center) Dismiss(id string) {
	c.store.Delete(id)
}
