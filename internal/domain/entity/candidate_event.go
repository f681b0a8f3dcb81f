package entity

import (
	"math"
	"strconv"
	"time"
)

type EventState string

const (
	StateCollecting EventState = "COLLECTING"
	StateReady      EventState = "READY"
	StateProcessing EventState = "PROCESSING"
	StateCompleted  EventState = "COMPLETED"
	StateFailed     EventState = "FAILED"
	StateExpired    EventState = "EXPIRED"
)

// EventKey is the time bucket an event was opened in.
type EventKey int64

func KeyFor(timestamp float64, quantum time.Duration) EventKey {
	return EventKey(math.Floor(timestamp / quantum.Seconds()))
}

func (k EventKey) String() string {
	return strconv.FormatInt(int64(k), 10)
}

func ParseEventKey(s string) (EventKey, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return EventKey(v), nil
}

// CandidateEvent collects readings that plausibly describe the same physical
// event. It is owned by the aggregator; callers outside it only see snapshots.
type CandidateEvent struct {
	Key       EventKey
	Readings  []SensorReading
	State     EventState
	CreatedAt time.Time

	minTS float64
	maxTS float64
}

func NewCandidateEvent(key EventKey, createdAt time.Time) *CandidateEvent {
	return &CandidateEvent{
		Key:       key,
		State:     StateCollecting,
		CreatedAt: createdAt,
	}
}

func (e *CandidateEvent) HasSensor(sensorID string) bool {
	for _, r := range e.Readings {
		if r.SensorID == sensorID {
			return true
		}
	}
	return false
}

// Open reports whether readings may still be appended.
func (e *CandidateEvent) Open() bool {
	return e.State == StateCollecting || e.State == StateReady
}

// SpreadWith is the time spread of the event if ts were added to it.
func (e *CandidateEvent) SpreadWith(ts float64) float64 {
	if len(e.Readings) == 0 {
		return 0
	}
	return math.Max(e.maxTS, ts) - math.Min(e.minTS, ts)
}

func (e *CandidateEvent) Append(r SensorReading) {
	if len(e.Readings) == 0 {
		e.minTS, e.maxTS = r.Timestamp, r.Timestamp
	} else {
		e.minTS = math.Min(e.minTS, r.Timestamp)
		e.maxTS = math.Max(e.maxTS, r.Timestamp)
	}
	e.Readings = append(e.Readings, r)
}

func (e *CandidateEvent) Snapshot() []SensorReading {
	out := make([]SensorReading, len(e.Readings))
	copy(out, e.Readings)
	return out
}
