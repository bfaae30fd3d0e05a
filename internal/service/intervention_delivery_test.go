package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogInterventionPublisher(t *testing.T) {
	var buf bytes.Buffer
	publisher := NewLogInterventionPublisher(zerolog.New(&buf))

	err := publisher.Publish(context.Background(), InterventionEvent{
		UserID:     "alice",
		URL:        "https://example.com/a.jpg",
		Cumulative: 2.1,
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "alice")
	require.Contains(t, buf.String(), "intervention threshold")
}

func TestInterventionEventEncoding(t *testing.T) {
	event := InterventionEvent{
		UserID:     "bob",
		URL:        "https://example.com/b.jpg",
		Cumulative: 1.9,
		Window:     []float64{0.6, 0.7, 0.6},
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"user_id":"bob"`)
	require.Contains(t, string(payload), `"cumulative":1.9`)
}
