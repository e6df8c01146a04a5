package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-alert/hazard-engine/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("key-1"),
		Value:     []byte(`{"source":"report"}`),
		Topic:     "raw-hazard-signals",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "collector", Value: []byte("mobile-app")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("key-1"), raw.Key)
	assert.JSONEq(t, `{"source":"report"}`, string(raw.Value))
	assert.Equal(t, "raw-hazard-signals", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "mobile-app", raw.Headers["collector"])
	assert.Nil(t, raw.Commit, "commit closure attached separately")
}

func TestSerializeZoneEvent(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	event := domain.ZoneEvent{
		Kind: domain.ZoneCreated,
		Zone: domain.Zone{
			ID:       "zone-1",
			Type:     domain.ZoneHazard,
			Hazard:   domain.HazardFlood,
			Centroid: domain.GeoPoint{Lat: 19.07, Lon: 72.87},
			Active:   true,
		},
		At: at,
	}

	msg, err := serializeZoneEvent(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("zone-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"zone_created"`)
	assert.Contains(t, string(msg.Value), `"hazard":"flood"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("zone_created"), msg.Headers[0].Value)
	assert.Equal(t, "hazard", msg.Headers[1].Key)
	assert.Equal(t, []byte("flood"), msg.Headers[1].Value)
	assert.Equal(t, "emitted_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(at.Format(time.RFC3339)), msg.Headers[2].Value)
}
