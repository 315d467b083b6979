package alerts

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup suppresses repeat motion events from the same camera inside a time
// window. It only gates external publishing; viewer fan-out is not deduped.
type Dedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{cache: c, ttl: ttl}
}

// IsDuplicate reports whether the key fired within the window, and marks it
// as fired now otherwise.
func (d *Dedup) IsDuplicate(key string) bool {
	if firedAt, ok := d.cache.Get(key); ok {
		if time.Since(firedAt) < d.ttl {
			return true
		}
	}
	d.cache.Add(key, time.Now())
	return false
}

// DedupKey buckets occurrence time to one second so micro-timing differences
// between repeated detections collapse onto the same key.
func DedupKey(cameraID string, occurredAt time.Time) string {
	return fmt.Sprintf("%s|%d", cameraID, occurredAt.Truncate(time.Second).Unix())
}
