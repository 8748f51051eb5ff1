package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

type markerStore interface {
	AddMembers(ctx context.Context, key string, ttl time.Duration, members ...string) error
	Members(ctx context.Context, key string) ([]string, error)
}

// ReadMarkers keeps per-reader read markers for messages whose read state
// could not be written to the store. Markers only hide notifications for the
// reader that recorded them and expire with the access token lifetime.
type ReadMarkers struct {
	store  markerStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewReadMarkers constructs the marker store.
func NewReadMarkers(store markerStore, ttl time.Duration, logger *zap.Logger) *ReadMarkers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadMarkers{store: store, ttl: ttl, logger: logger}
}

func readMarkerKey(readerID string) string {
	return "read_markers:" + readerID
}

// Mark records a local marker for readerID.
func (r *ReadMarkers) Mark(ctx context.Context, readerID string, kind models.MessageKind, id string) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.AddMembers(ctx, readMarkerKey(readerID), r.ttl, markerKey(kind, id))
}

// Load returns the markers of readerID. Lookup failures yield no markers.
func (r *ReadMarkers) Load(ctx context.Context, readerID string) Markers {
	if r == nil || r.store == nil {
		return nil
	}
	members, err := r.store.Members(ctx, readMarkerKey(readerID))
	if err != nil {
		r.logger.Warn("failed to load read markers", zap.String("user_id", readerID), zap.Error(err))
		return nil
	}
	markers := make(Markers, len(members))
	for _, m := range members {
		markers[m] = true
	}
	return markers
}
