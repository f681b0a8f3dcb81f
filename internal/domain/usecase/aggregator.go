package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"shotlocator/internal/domain/entity"
)

var (
	ErrLateReading    = errors.New("event already in processing")
	ErrSpreadConflict = errors.New("reading does not fit the open event")
	ErrUnknownEvent   = errors.New("unknown event")
)

const shardCount = 64

type AggregatorConfig struct {
	Quorum        int
	TimeTolerance time.Duration
	BucketQuantum time.Duration
	ExpiryWindow  time.Duration
}

type shard struct {
	mu     sync.Mutex
	events map[entity.EventKey]*entity.CandidateEvent
}

// EventAggregator correlates readings into candidate events. The keyed
// collection is split into shards with their own locks; a reading only ever
// locks the shards of its bucket and the two neighbouring buckets.
type EventAggregator struct {
	cfg    AggregatorConfig
	shards [shardCount]shard
	now    func() time.Time
}

func NewEventAggregator(cfg AggregatorConfig) *EventAggregator {
	a := &EventAggregator{cfg: cfg, now: time.Now}
	for i := range a.shards {
		a.shards[i].events = make(map[entity.EventKey]*entity.CandidateEvent)
	}
	return a
}

func (a *EventAggregator) shardIndex(key entity.EventKey) int {
	i := int(key % shardCount)
	if i < 0 {
		i += shardCount
	}
	return i
}

func (a *EventAggregator) shardFor(key entity.EventKey) *shard {
	return &a.shards[a.shardIndex(key)]
}

// lockKeys locks the shards owning keys in ascending shard order and returns
// the matching unlock.
func (a *EventAggregator) lockKeys(keys ...entity.EventKey) func() {
	idx := make([]int, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		i := a.shardIndex(k)
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	for _, i := range idx {
		a.shards[i].mu.Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			a.shards[idx[j]].mu.Unlock()
		}
	}
}

// Ingest adds a reading to the open event it belongs to, opening one if
// needed. ready is true for exactly one call per event: the one that brings
// the number of distinct sensors to the quorum.
func (a *EventAggregator) Ingest(r entity.SensorReading) (entity.EventKey, bool, error) {
	key := entity.KeyFor(r.Timestamp, a.cfg.BucketQuantum)
	unlock := a.lockKeys(key-1, key, key+1)
	defer unlock()

	ev := a.findEvent(r, key)
	if ev != nil && !ev.Open() {
		if ev.HasSensor(r.SensorID) {
			return ev.Key, false, nil
		}
		return ev.Key, false, fmt.Errorf("%w: key %s is %s", ErrLateReading, ev.Key, ev.State)
	}
	if ev == nil {
		if existing, ok := a.shardFor(key).events[key]; ok {
			if existing.HasSensor(r.SensorID) {
				return key, false, nil
			}
			if !existing.Open() {
				return key, false, fmt.Errorf("%w: key %s is %s", ErrLateReading, key, existing.State)
			}
			return key, false, fmt.Errorf("%w: %s at %.3f, key %s", ErrSpreadConflict, r.SensorID, r.Timestamp, key)
		}
		ev = entity.NewCandidateEvent(key, a.now())
		a.shardFor(key).events[key] = ev
	}

	if ev.HasSensor(r.SensorID) {
		return ev.Key, false, nil
	}
	ev.Append(r)

	if ev.State == entity.StateCollecting && len(ev.Readings) >= a.cfg.Quorum {
		ev.State = entity.StateReady
		return ev.Key, true, nil
	}
	return ev.Key, false, nil
}

// findEvent picks the open event around key that the reading fits into with
// the smallest resulting time spread. Without one, it falls back to an event
// already past READY that either holds the sensor or is within the tolerance of
// the reading, so late arrivals of a closed shot never open a second event in a
// neighbouring bucket. Caller holds the shard locks.
func (a *EventAggregator) findEvent(r entity.SensorReading, key entity.EventKey) *entity.CandidateEvent {
	var best, closed *entity.CandidateEvent
	tolerance := a.cfg.TimeTolerance.Seconds()
	for _, k := range []entity.EventKey{key, key - 1, key + 1} {
		ev, ok := a.shardFor(k).events[k]
		if !ok {
			continue
		}
		if !ev.Open() {
			if ev.HasSensor(r.SensorID) || (closed == nil && ev.SpreadWith(r.Timestamp) <= tolerance) {
				closed = ev
			}
			continue
		}
		if ev.HasSensor(r.SensorID) {
			return ev
		}
		if spread := ev.SpreadWith(r.Timestamp); spread <= tolerance {
			if best == nil || spread < best.SpreadWith(r.Timestamp) {
				best = ev
			}
		}
	}
	if closed != nil && (best == nil || closed.HasSensor(r.SensorID)) {
		return closed
	}
	return best
}

// Begin moves a READY event to PROCESSING and returns a copy of its readings.
// Only the first caller for a key gets ok == true.
func (a *EventAggregator) Begin(key entity.EventKey) ([]entity.SensorReading, bool) {
	s := a.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[key]
	if !ok || ev.State != entity.StateReady {
		return nil, false
	}
	ev.State = entity.StateProcessing
	return ev.Snapshot(), true
}

// Finish records the terminal state of a PROCESSING event and drops it.
func (a *EventAggregator) Finish(key entity.EventKey, state entity.EventState) error {
	s := a.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, key)
	}
	if ev.State != entity.StateProcessing {
		return fmt.Errorf("finish %s: event is %s", key, ev.State)
	}
	ev.State = state
	delete(s.events, key)
	return nil
}

// Abandon drops a READY event that never made it onto the work queue.
func (a *EventAggregator) Abandon(key entity.EventKey) {
	s := a.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev, ok := s.events[key]; ok && ev.State == entity.StateReady {
		ev.State = entity.StateFailed
		delete(s.events, key)
	}
}

// State reports the lifecycle state of a tracked event.
func (a *EventAggregator) State(key entity.EventKey) (entity.EventState, bool) {
	s := a.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[key]
	if !ok {
		return "", false
	}
	return ev.State, true
}

// Sweep expires events that were still collecting after the expiry window and
// returns their keys. Events past COLLECTING are left alone.
func (a *EventAggregator) Sweep() []entity.EventKey {
	cutoff := a.now().Add(-a.cfg.ExpiryWindow)
	var expired []entity.EventKey
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		for key, ev := range s.events {
			if ev.State == entity.StateCollecting && ev.CreatedAt.Before(cutoff) {
				ev.State = entity.StateExpired
				delete(s.events, key)
				expired = append(expired, key)
			}
		}
		s.mu.Unlock()
	}
	return expired
}

func (a *EventAggregator) Len() int {
	n := 0
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		n += len(s.events)
		s.mu.Unlock()
	}
	return n
}
