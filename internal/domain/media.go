package domain

import (
	"context"
	"time"
)

// MediaKind tells photos and recordings apart.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaRecord is a captured file known to the media catalog.
type MediaRecord struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Kind       MediaKind `json:"kind"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"sizeBytes"`
	DurationMs int64     `json:"durationMs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MediaFilter narrows a catalog listing. Zero fields match everything.
type MediaFilter struct {
	DeviceID string
	Kind     MediaKind
	Limit    int
}

// MediaCatalog records captured files.
type MediaCatalog interface {
	Record(ctx context.Context, rec MediaRecord) (int64, error)
	List(ctx context.Context, filter MediaFilter) ([]MediaRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]MediaRecord, error)
	Close() error
}
