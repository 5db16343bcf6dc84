// Package model defines the canonical types shared across the engine:
// media references, per-provider detection results, and consensus records.
package model

// MediaType identifies the kind of media under analysis.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypePhoto MediaType = "photo"
)

// Valid reports whether mt is a recognized media type.
func (mt MediaType) Valid() bool {
	return mt == MediaTypeVideo || mt == MediaTypePhoto
}

// MediaRef points at one media item for a single analysis run. It is built
// by the caller at request time and never persisted; the media-storage
// service owns the underlying object.
type MediaRef struct {
	MediaID    string    `json:"media_id"`
	MediaType  MediaType `json:"media_type"`
	LocatorURL string    `json:"locator_url"`
}
