package sim

import (
	"time"

	"arena-core/internal/geom"
)

// defaultSnapshotSpanMs stands in for the real inter-snapshot span until
// two snapshots have arrived.
const defaultSnapshotSpanMs = 33

// Interpolator renders the remote entity between its two most recent
// snapshot positions, trading one snapshot interval of visual delay for
// smoothness. No prediction ever runs for the remote entity.
type Interpolator struct {
	prev, next geom.Vec3
	prevTS     int64 // snapshot send timestamps, Unix millis
	nextTS     int64
	arrivedAt  int64 // local arrival time of next, Unix millis
	count      int
}

// Push records a new authoritative remote position. Callers reject stale
// snapshots before pushing, so timestamps here are monotonic.
func (i *Interpolator) Push(pos geom.Vec3, sendTS, nowMillis int64) {
	i.prev, i.prevTS = i.next, i.nextTS
	i.next, i.nextTS = pos, sendTS
	i.arrivedAt = nowMillis
	if i.count < 2 {
		i.count++
	}
}

// At returns the rendered remote position: the elapsed-time fraction
// between the two buffered snapshots, clamped to [0,1] so a late
// snapshot holds at the newest known position instead of extrapolating.
// Returns false until at least one snapshot has arrived.
func (i *Interpolator) At(nowMillis int64) (geom.Vec3, bool) {
	switch i.count {
	case 0:
		return geom.Vec3{}, false
	case 1:
		return i.next, true
	}

	span := i.nextTS - i.prevTS
	if span <= 0 {
		span = defaultSnapshotSpanMs
	}

	frac := float64(nowMillis-i.arrivedAt) / float64(span)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return i.prev.Lerp(i.next, frac), true
}

// Reset clears the buffer at match teardown.
func (i *Interpolator) Reset() {
	*i = Interpolator{}
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
