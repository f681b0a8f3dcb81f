package entity

import (
	"time"

	"gorm.io/gorm"
)

const EventTypeGunshot = "gunshot"

type LocalizationResult struct {
	Position   GeoPoint
	Converged  bool
	Residual   float64 // RMS of time-difference residuals, seconds
	Iterations int
}

// Event is the finalized record handed to durable storage.
type Event struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	EventKey    int64           `gorm:"not null;index" json:"event_key"`
	EventType   string          `gorm:"not null;type:text" json:"event_type"`
	EventTime   float64         `gorm:"not null;index" json:"event_time"`
	Latitude    float64         `gorm:"not null" json:"latitude"`
	Longitude   float64         `gorm:"not null" json:"longitude"`
	Residual    float64         `json:"residual"`
	Iterations  int             `json:"iterations"`
	SensorCount int             `json:"sensor_count"`
	SnapshotKey string          `gorm:"type:text" json:"snapshot_key,omitempty"`
	RawReadings []byte          `gorm:"type:jsonb" json:"-"`
	Readings    []SensorReading `gorm:"-" json:"readings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"-"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

type Alert struct {
	EventID      string   `json:"event_id"`
	EventType    string   `json:"event_type"`
	Location     GeoPoint `json:"location"`
	EventTime    float64  `json:"event_time"`
	Severity     string   `json:"severity"`
	ReadingCount int      `json:"reading_count"`
	Residual     float64  `json:"residual"`
}
