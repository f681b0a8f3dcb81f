package psql

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"shotlocator/internal/domain/entity"
)

type GormEventRepo struct {
	DB *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{DB: db}
}

func (r *GormEventRepo) Migrate() error {
	return r.DB.AutoMigrate(&entity.Event{})
}

func (r *GormEventRepo) SaveEvent(ctx context.Context, event *entity.Event) error {
	raw, err := json.Marshal(event.Readings)
	if err != nil {
		return fmt.Errorf("marshal readings: %w", err)
	}
	event.RawReadings = raw
	if err := r.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

// ListEventsSince returns events whose event time is at or after since
// (unix seconds), newest first.
func (r *GormEventRepo) ListEventsSince(ctx context.Context, since float64) ([]entity.Event, error) {
	var events []entity.Event
	err := r.DB.WithContext(ctx).
		Where("event_time >= ?", since).
		Order("event_time desc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i := range events {
		if len(events[i].RawReadings) == 0 {
			continue
		}
		if err := json.Unmarshal(events[i].RawReadings, &events[i].Readings); err != nil {
			return nil, fmt.Errorf("decode readings of event %s: %w", events[i].ID, err)
		}
	}
	return events, nil
}
