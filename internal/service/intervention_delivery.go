package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// InterventionEvent is emitted whenever a user's cumulative exposure crosses
// the intervention threshold.
type InterventionEvent struct {
	UserID     string    `json:"user_id"`
	URL        string    `json:"url"`
	Cumulative float64   `json:"cumulative"`
	Window     []float64 `json:"window"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InterventionPublisher delivers intervention events to downstream consumers
// (the browser extension relay, notification workers).
type InterventionPublisher interface {
	Publish(ctx context.Context, event InterventionEvent) error
}

const interventionSubject = "bodylens.interventions"

// NATSInterventionPublisher publishes intervention events on a NATS subject.
type NATSInterventionPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSInterventionPublisher connects to NATS and returns a publisher.
func NewNATSInterventionPublisher(url string, logger zerolog.Logger) (*NATSInterventionPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url must not be empty")
	}

	conn, err := nats.Connect(url, nats.Name("bodylens-api"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &NATSInterventionPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "intervention_publisher").Logger(),
	}, nil
}

// Publish sends the event as JSON on the intervention subject.
func (p *NATSInterventionPublisher) Publish(_ context.Context, event InterventionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode intervention event: %w", err)
	}

	if err := p.conn.Publish(interventionSubject, payload); err != nil {
		return fmt.Errorf("publish intervention event: %w", err)
	}

	p.logger.Info().Str("user_id", event.UserID).Float64("cumulative", event.Cumulative).Msg("intervention event published")
	return nil
}

// Close drains the underlying connection.
func (p *NATSInterventionPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// LogInterventionPublisher records intervention events in the service log.
// Used when no message broker is configured.
type LogInterventionPublisher struct {
	logger zerolog.Logger
}

// NewLogInterventionPublisher constructs the log-only publisher.
func NewLogInterventionPublisher(logger zerolog.Logger) *LogInterventionPublisher {
	return &LogInterventionPublisher{
		logger: logger.With().Str("component", "intervention_publisher").Logger(),
	}
}

// Publish logs the event.
func (p *LogInterventionPublisher) Publish(_ context.Context, event InterventionEvent) error {
	p.logger.Info().
		Str("user_id", event.UserID).
		Str("url", event.URL).
		Float64("cumulative", event.Cumulative).
		Msg("cumulative exposure crossed intervention threshold")
	return nil
}
