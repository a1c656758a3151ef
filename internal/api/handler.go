package api

import (
	"context"
	"time"

	"supervisor-console/internal/flow"
	"supervisor-console/internal/model"
	"supervisor-console/internal/store"
)

// Flow is the part of the flow controller the console drives.
type Flow interface {
	Dispatch(ctx context.Context, ev flow.Event) (flow.Snapshot, error)
	Snapshot() flow.Snapshot
}

// NoticeBoard lists and dismisses live notices.
type NoticeBoard interface {
	List() []model.Notice
	Dismiss(id string)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	flow    Flow
	notices NoticeBoard
	journal store.Store
	opts    flow.Options
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(f Flow, notices NoticeBoard, journal store.Store, opts flow.Options) *Handler {
	if journal == nil {
		journal = store.NewNopStore()
	}
	return &Handler{
		flow:    f,
		notices: notices,
		journal: journal,
		opts:    opts,
		now:     time.Now,
	}
}
