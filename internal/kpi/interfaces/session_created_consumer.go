package interfaces

import (
	"context"
	"errors"
	"log"
	"time"

	"fleet-telemetry/internal/eventing"
	"fleet-telemetry/internal/ingestion/application/events"
	"fleet-telemetry/internal/kpi/application"
)

// SessionCreatedConsumer recomputes KPIs for every day a new session touches,
// so daily records track ingestion without polling.
type SessionCreatedConsumer struct {
	engine *application.Engine
	orgID  string
	logger *log.Logger
}

// NewSessionCreatedConsumer constructs a consumer.
func NewSessionCreatedConsumer(engine *application.Engine, orgID string, logger *log.Logger) (*SessionCreatedConsumer, error) {
	if engine == nil {
		return nil, errors.New("kpi consumer: nil engine")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionCreatedConsumer{engine: engine, orgID: orgID, logger: logger}, nil
}

// Handle processes one SessionCreated event.
func (c *SessionCreatedConsumer) Handle(ctx context.Context, event any) error {
	evt, ok := event.(events.SessionCreated)
	if !ok {
		return eventing.ErrInvalidEventType
	}

	for day := truncateToDay(evt.Start); !day.After(evt.End); day = day.Add(24 * time.Hour) {
		if _, err := c.engine.ComputeDay(ctx, evt.VehicleID, c.orgID, day); err != nil {
			c.logger.Printf("kpi consumer: vehicle %s day %s: %v", evt.VehicleID, day.Format("2006-01-02"), err)
			return err
		}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
