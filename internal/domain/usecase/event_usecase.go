package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shotlocator/internal/domain/entity"
	"shotlocator/pkg/utils"
)

type Validator interface {
	Validate(readings []entity.SensorReading) error
}

type OutlierFilter interface {
	Filter(readings []entity.SensorReading) ([]entity.SensorReading, error)
}

type Localizer interface {
	Locate(ctx context.Context, positions []entity.GeoPoint, offsets []float64) (entity.LocalizationResult, error)
}

type EventRepo interface {
	SaveEvent(ctx context.Context, event *entity.Event) error
	ListEventsSince(ctx context.Context, since float64) ([]entity.Event, error)
}

type SnapshotArchive interface {
	UploadSnapshot(ctx context.Context, key string, data []byte) error
}

type Publisher interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

type EventStatusRepo interface {
	SetStatus(ctx context.Context, key, status string) error
	GetStatus(ctx context.Context, key string) (string, error)
}

type EventUseCase struct {
	Aggregator *EventAggregator
	Scheduler  *Scheduler

	Validator Validator
	Filter    OutlierFilter
	Localizer Localizer

	EventRepo  EventRepo
	Archive    SnapshotArchive
	Publisher  Publisher
	StatusRepo EventStatusRepo

	now func() time.Time
}

func NewEventUseCase(agg *EventAggregator, sched *Scheduler, v Validator, f OutlierFilter, l Localizer,
	repo EventRepo, archive SnapshotArchive, pub Publisher, status EventStatusRepo) *EventUseCase {
	return &EventUseCase{
		Aggregator: agg,
		Scheduler:  sched,
		Validator:  v,
		Filter:     f,
		Localizer:  l,
		EventRepo:  repo,
		Archive:    archive,
		Publisher:  pub,
		StatusRepo: status,
		now:        time.Now,
	}
}

// SubmitReading is the single entry point for detections from any transport.
func (u *EventUseCase) SubmitReading(ctx context.Context, r entity.SensorReading) (entity.EventKey, bool, error) {
	if err := r.Check(); err != nil {
		return 0, false, err
	}

	key, ready, err := u.Aggregator.Ingest(r)
	if err != nil {
		return key, false, err
	}
	if !ready {
		return key, false, nil
	}

	u.setStatus(ctx, key, entity.StateReady)
	if err := u.Scheduler.Enqueue(ctx, key); err != nil {
		u.Aggregator.Abandon(key)
		u.setStatus(ctx, key, entity.StateFailed)
		return key, false, fmt.Errorf("enqueue event %s: %w", key, err)
	}
	log.Printf("event %s reached quorum, queued for localization", key)
	return key, true, nil
}

// ProcessEvent drives one ready event through the pipeline. It is the
// scheduler's handler.
func (u *EventUseCase) ProcessEvent(ctx context.Context, key entity.EventKey) {
	snapshot, ok := u.Aggregator.Begin(key)
	if !ok {
		log.Printf("event %s is not ready, skipping", key)
		return
	}
	u.setStatus(ctx, key, entity.StateProcessing)

	used, result, err := u.localize(ctx, snapshot)
	if err != nil {
		if ferr := u.Aggregator.Finish(key, entity.StateFailed); ferr != nil {
			log.Printf("event %s: %v", key, ferr)
		}
		u.setStatus(ctx, key, entity.StateFailed)
		log.Printf("event %s failed with %d readings: %v", key, len(snapshot), err)
		return
	}

	if err := u.Aggregator.Finish(key, entity.StateCompleted); err != nil {
		log.Printf("event %s: %v", key, err)
	}
	u.setStatus(ctx, key, entity.StateCompleted)
	log.Printf("event %s located at (%.6f, %.6f) from %d sensors, residual %.2gs",
		key, result.Position.Latitude, result.Position.Longitude, len(used), result.Residual)

	event := u.newEvent(key, used, result)
	u.persist(ctx, event)
	if u.StatusRepo != nil {
		if err := u.StatusRepo.SetStatus(ctx, event.ID, string(entity.StateCompleted)); err != nil {
			log.Printf("failed to set status for event %s: %v", event.ID, err)
		}
	}
	u.alert(ctx, event)
}

func (u *EventUseCase) localize(ctx context.Context, readings []entity.SensorReading) ([]entity.SensorReading, entity.LocalizationResult, error) {
	if err := u.Validator.Validate(readings); err != nil {
		return nil, entity.LocalizationResult{}, fmt.Errorf("validate: %w", err)
	}
	used, err := u.Filter.Filter(readings)
	if err != nil {
		return nil, entity.LocalizationResult{}, fmt.Errorf("filter: %w", err)
	}
	result, err := u.Localizer.Locate(ctx, entity.Positions(used), entity.TimeOffsets(used))
	if err != nil {
		return nil, entity.LocalizationResult{}, fmt.Errorf("locate: %w", err)
	}
	return used, result, nil
}

func (u *EventUseCase) newEvent(key entity.EventKey, used []entity.SensorReading, result entity.LocalizationResult) *entity.Event {
	eventTime := used[0].Timestamp
	for _, r := range used[1:] {
		if r.Timestamp < eventTime {
			eventTime = r.Timestamp
		}
	}
	return &entity.Event{
		ID:          uuid.New().String(),
		EventKey:    int64(key),
		EventType:   entity.EventTypeGunshot,
		EventTime:   eventTime,
		Latitude:    result.Position.Latitude,
		Longitude:   result.Position.Longitude,
		Residual:    result.Residual,
		Iterations:  result.Iterations,
		SensorCount: len(used),
		Readings:    used,
		CreatedAt:   u.now(),
	}
}

// persist hands the event to storage. Storage failures are logged only; the
// collaborators own buffering and retries.
func (u *EventUseCase) persist(ctx context.Context, event *entity.Event) {
	if u.Archive != nil {
		data, err := json.Marshal(event.Readings)
		if err == nil {
			key := fmt.Sprintf("events/%s/readings.json", event.ID)
			if err = u.Archive.UploadSnapshot(ctx, key, data); err == nil {
				event.SnapshotKey = key
			}
		}
		if err != nil {
			log.Printf("failed to archive snapshot for event %s: %v", event.ID, err)
		}
	}
	if u.EventRepo != nil {
		if err := u.EventRepo.SaveEvent(ctx, event); err != nil {
			log.Printf("failed to store event %s: %v", event.ID, err)
		}
	}
}

func (u *EventUseCase) alert(ctx context.Context, event *entity.Event) {
	if u.Publisher == nil {
		return
	}
	body, err := utils.ToRawMessage(entity.Alert{
		EventID:      event.ID,
		EventType:    event.EventType,
		Location:     entity.GeoPoint{Latitude: event.Latitude, Longitude: event.Longitude},
		EventTime:    event.EventTime,
		Severity:     "HIGH",
		ReadingCount: event.SensorCount,
		Residual:     event.Residual,
	})
	if err == nil {
		err = u.Publisher.Publish(ctx, body)
	}
	if err != nil {
		log.Printf("failed to send alert for event %s: %v", event.ID, err)
	}
}

// ExpireStale reclaims events that never reached quorum.
func (u *EventUseCase) ExpireStale(ctx context.Context) int {
	expired := u.Aggregator.Sweep()
	for _, key := range expired {
		u.setStatus(ctx, key, entity.StateExpired)
	}
	if len(expired) > 0 {
		log.Printf("expired %d stale events", len(expired))
	}
	return len(expired)
}

// AbandonQueued fails every ready event still waiting in the work queue.
// Call it once the scheduler workers have returned.
func (u *EventUseCase) AbandonQueued(ctx context.Context) int {
	keys := u.Scheduler.Drain()
	for _, key := range keys {
		u.Aggregator.Abandon(key)
		u.setStatus(ctx, key, entity.StateFailed)
	}
	if len(keys) > 0 {
		log.Printf("abandoned %d queued events on shutdown", len(keys))
	}
	return len(keys)
}

func (u *EventUseCase) ListEvents(ctx context.Context, since time.Duration) ([]entity.Event, error) {
	from := u.now().Add(-since)
	return u.EventRepo.ListEventsSince(ctx, float64(from.UnixNano())/1e9)
}

func (u *EventUseCase) GetStatus(ctx context.Context, key entity.EventKey) (entity.EventState, error) {
	if state, ok := u.Aggregator.State(key); ok {
		return state, nil
	}
	if u.StatusRepo == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, key)
	}
	status, err := u.StatusRepo.GetStatus(ctx, key.String())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnknownEvent, key, err)
	}
	return entity.EventState(status), nil
}

// GetEventStatus looks a finalized event up by its ID. Unlike the bucket key,
// the ID is never reused by a later event.
func (u *EventUseCase) GetEventStatus(ctx context.Context, id string) (entity.EventState, error) {
	if u.StatusRepo == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	status, err := u.StatusRepo.GetStatus(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnknownEvent, id, err)
	}
	return entity.EventState(status), nil
}

func (u *EventUseCase) setStatus(ctx context.Context, key entity.EventKey, state entity.EventState) {
	if u.StatusRepo == nil {
		return
	}
	if err := u.StatusRepo.SetStatus(ctx, key.String(), string(state)); err != nil {
		log.Printf("failed to set status %s for event %s: %v", state, key, err)
	}
}
