package vectordb

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/sunhengzhe/easylish/subtitle"
)

// pointIDNamespace prefixes entry ids before hashing so ids from other
// systems cannot collide with ours.
const pointIDNamespace = "easylish:"

// PointID converts an arbitrary entry id into a Qdrant-compatible point id.
//
// Qdrant accepts unsigned integers and UUID strings only:
//   - numeric strings pass through as uint64
//   - UUID strings pass through canonicalized
//   - anything else maps deterministically to a UUIDv5 in the URL namespace
func PointID(raw string) any {
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n
	}
	if u, err := uuid.Parse(raw); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(pointIDNamespace+raw)).String()
}

// NewPoint builds an upsert-ready point from an entry and its vector. The
// payload denormalizes the entry so hits can be hydrated from it directly.
func NewPoint(entry subtitle.Entry, vector []float32) Point {
	normalized := entry.NormalizedText
	if normalized == "" {
		normalized = subtitle.Normalize(entry.Text)
	}

	return Point{
		ID:     PointID(entry.ID),
		Vector: vector,
		Payload: Payload{
			EntryID:        entry.ID,
			VideoID:        entry.VideoID,
			Episode:        entry.Episode,
			Sequence:       entry.Sequence,
			StartMS:        entry.StartMS,
			EndMS:          entry.EndMS,
			Text:           entry.Text,
			NormalizedText: normalized,
		},
	}
}

// Entry reconstructs a subtitle entry from a stored payload.
func (p Payload) Entry() subtitle.Entry {
	return subtitle.Entry{
		ID:             p.EntryID,
		VideoID:        p.VideoID,
		Episode:        p.Episode,
		Sequence:       p.Sequence,
		StartMS:        p.StartMS,
		EndMS:          p.EndMS,
		Text:           p.Text,
		NormalizedText: p.NormalizedText,
	}
}
