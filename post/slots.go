package post

import (
	"time"

	"github.com/publora/publora/errors"
)

// SlotAllocator computes non-colliding future publish slots per platform.
// It never reserves a slot: callers must persist the post promptly, which is
// safe under the single-writer assumption.
type SlotAllocator struct {
	store *Store
	clock func() time.Time
}

// NewSlotAllocator creates an allocator over the given store
func NewSlotAllocator(store *Store) *SlotAllocator {
	return &SlotAllocator{store: store, clock: time.Now}
}

// WithClock overrides the allocator's notion of now (for tests)
func (a *SlotAllocator) WithClock(clock func() time.Time) *SlotAllocator {
	a.clock = clock
	return a
}

// NextSlot returns the next free publish slot for a platform. The base time
// (default: now + spacing) is rounded down to the top of the hour, then
// advanced by spacing until no post already occupies that (platform, time)
// pair. Occupancy is re-queried on every call; tie-breaks always walk
// forward in time.
func (a *SlotAllocator) NextSlot(platform string, spacingHours int, base time.Time) (time.Time, error) {
	if spacingHours < 1 {
		spacingHours = 1
	}
	spacing := time.Duration(spacingHours) * time.Hour

	if base.IsZero() {
		base = a.clock().Add(spacing)
	}
	slot := base.UTC().Truncate(time.Hour)

	occupied, err := a.occupancy(platform)
	if err != nil {
		return time.Time{}, err
	}

	for occupied[slot.Unix()] {
		slot = slot.Add(spacing)
	}

	return slot, nil
}

// ScheduleTime picks one synchronized publish time for a multi-platform
// post: the latest of the per-platform next free slots, so the post goes out
// to every destination at the same instant rather than staggered.
func (a *SlotAllocator) ScheduleTime(platforms []string, spacingHours int) (time.Time, error) {
	return a.scheduleTimeFrom(platforms, spacingHours, time.Time{})
}

func (a *SlotAllocator) scheduleTimeFrom(platforms []string, spacingHours int, base time.Time) (time.Time, error) {
	if len(platforms) == 0 {
		return time.Time{}, errors.New("at least one platform is required")
	}

	var latest time.Time
	for _, platform := range platforms {
		slot, err := a.NextSlot(platform, spacingHours, base)
		if err != nil {
			return time.Time{}, err
		}
		if slot.After(latest) {
			latest = slot
		}
	}

	return latest, nil
}

// SpaceBatch produces count strictly increasing publish times for a batch of
// unrelated posts. Each subsequent allocation starts at least one hour past
// the previous result regardless of spacing, so a batch never collides with
// itself even before any post is persisted.
func (a *SlotAllocator) SpaceBatch(platforms []string, count, spacingHours int) ([]time.Time, error) {
	if count < 1 {
		return nil, errors.New("batch count must be at least 1")
	}

	times := make([]time.Time, 0, count)
	var base time.Time
	for i := 0; i < count; i++ {
		slot, err := a.scheduleTimeFrom(platforms, spacingHours, base)
		if err != nil {
			return nil, err
		}
		times = append(times, slot)
		base = slot.Add(time.Hour)
	}

	return times, nil
}

func (a *SlotAllocator) occupancy(platform string) (map[int64]bool, error) {
	claimed, err := a.store.ScheduledTimes(platform)
	if err != nil {
		return nil, err
	}

	occupied := make(map[int64]bool, len(claimed))
	for _, t := range claimed {
		occupied[t.UTC().Unix()] = true
	}
	return occupied, nil
}
