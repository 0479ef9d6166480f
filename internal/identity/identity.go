package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Tuple holds the nine fields that define an asset's identity. Nil means
// the game coordinator omitted the field; it is treated as 0 when hashing.
//
// The field order of the join is fixed and part of the stored contract:
// paint_seed, paint_index, paint_wear, def_index, origin, rarity, quest_id,
// quality, drop_reason. Changing it would orphan every unique_id already in
// the database.
type Tuple struct {
	PaintSeed  *int
	PaintIndex *int
	PaintWear  *float64
	DefIndex   *int
	Origin     *int
	Rarity     *int
	QuestID    *int
	Quality    *int
	DropReason *int
}

// UniqueID returns the 8 lowercase hex character content hash for the tuple:
// the nine values (missing ones defaulted to 0) joined by "-", SHA-1, first
// 8 hex chars. The SQL repair routine computes the same value; the two must
// never diverge.
func UniqueID(t Tuple) string {
	parts := []string{
		formatInt(t.PaintSeed),
		formatInt(t.PaintIndex),
		formatWear(t.PaintWear),
		formatInt(t.DefIndex),
		formatInt(t.Origin),
		formatInt(t.Rarity),
		formatInt(t.QuestID),
		formatInt(t.Quality),
		formatInt(t.DropReason),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])[:8]
}

func formatInt(v *int) string {
	if v == nil {
		return "0"
	}
	return strconv.Itoa(*v)
}

// formatWear renders the wear with the shortest representation that
// round-trips, matching how the value was historically stringified.
func formatWear(v *float64) string {
	if v == nil || *v == 0 {
		return "0"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// WearFromBits reinterprets the raw 32-bit wear integer from the game
// coordinator as a big-endian IEEE-754 single and widens it to float64.
// Example: 1065353216 -> 1.0.
func WearFromBits(bits uint32) float64 {
	return float64(math.Float32frombits(bits))
}

// UnsignedID reinterprets a signed 64-bit id (as stored in Postgres BIGINT
// columns) as unsigned. Equivalent to (signed + 2^63) XOR 2^63.
func UnsignedID(v int64) uint64 {
	return uint64(v)
}

// SignedID is the inverse of UnsignedID, for writing back to BIGINT columns.
func SignedID(v uint64) int64 {
	return int64(v)
}
