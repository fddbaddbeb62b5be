package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// ErrItemTooLarge is returned when an item exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Stats holds cache counters.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Key derives the cache key for one utterance. Anything that changes the
// audio must be part of the key.
func Key(voiceURI, lang string, rate float64, text string) string {
	h := sha256.New()
	for _, part := range []string{voiceURI, lang, strconv.FormatFloat(rate, 'f', 2, 64), text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
