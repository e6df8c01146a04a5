//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/atlas-alert/hazard-engine/internal/adapter/kafka"
	"github.com/atlas-alert/hazard-engine/internal/adapter/sqlite"
	"github.com/atlas-alert/hazard-engine/internal/classify"
	"github.com/atlas-alert/hazard-engine/internal/cluster"
	"github.com/atlas-alert/hazard-engine/internal/config"
	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/engine"
	"github.com/atlas-alert/hazard-engine/internal/forecast"
	"github.com/atlas-alert/hazard-engine/internal/ingest"
	"github.com/atlas-alert/hazard-engine/internal/observability"
	"github.com/atlas-alert/hazard-engine/internal/zone"
)

const (
	testSignalTopic = "test-raw-signals"
	testZoneTopic   = "test-zone-events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skip("skipping: docker not available")
	}
}

// startKafka launches a single-node Kafka container and returns its broker
// address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	skipIfNoDocker(t)

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("hazard-engine-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaSignalTopic: testSignalTopic,
		KafkaZoneTopic:   testZoneTopic,
		KafkaGroupID:     fmt.Sprintf("test-engine-%d", time.Now().UnixNano()),
	}
}

// strongText stands in for the trained classifier so end-to-end flows cross
// the clustering threshold without a model endpoint.
type strongText struct{}

func (strongText) ScoreText(context.Context, string) (domain.TextAnalysis, error) {
	return domain.TextAnalysis{
		HazardProbs: map[domain.HazardType]float64{domain.HazardTsunami: 0.9},
		Urgency:     0.9,
		Confidence:  0.95,
	}, nil
}

type calmWeather struct{}

func (calmWeather) Get(context.Context, float64, float64) (domain.WeatherObservation, error) {
	return domain.DefaultWeather, nil
}

func newTestEngine(t *testing.T, publisher engine.ZoneEventPublisher) (*engine.Engine, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := engine.New(engine.Options{
		Store:      store,
		Normalizer: ingest.NewNormalizer(strongText{}, classify.ImageHeuristic{}, nil, discardLogger()),
		Clusterer:  cluster.New(cluster.DefaultParams()),
		Zones:      zone.NewManager(store, zone.DefaultParams()),
		Forecaster: forecast.New(calmWeather{}, nil),
		Publisher:  publisher,
		Logger:     discardLogger(),
		Metrics:    observability.NewMetricsForTesting(),
	})
	return e, store
}

func rawSignalPayload(t *testing.T, reporter string, dLat float64) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.RawSignal{
		Source:     domain.SourceReport,
		ReporterID: reporter,
		Text:       "water receding fast, people running from the beach",
		Lat:        19.07 + dLat,
		Lon:        72.87,
		OccurredAt: time.Now().UTC().Add(-10 * time.Minute),
	})
	require.NoError(t, err)
	return payload
}

// TestKafkaReaderWriter verifies the adapter layer round-trips messages:
// raw signals in through kafka.Reader, zone events out through kafka.Writer.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSignalTopic)
	createTopic(t, broker, testZoneTopic)
	cfg := testConfig(broker)

	payload := rawSignalPayload(t, "reporter-1", 0)
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSignalTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte("test-key"),
		Value: payload,
	}))

	// Extract via kafka.Reader. Retry because the consumer group may need
	// time to rebalance before partitions are assigned.
	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from signal topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("test-key"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSignalTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	// Publish a zone event via kafka.Writer and read it back.
	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	event := domain.ZoneEvent{
		Kind: domain.ZoneCreated,
		Zone: domain.Zone{ID: "zone-1", Hazard: domain.HazardTsunami},
		At:   time.Now().UTC(),
	}
	require.NoError(t, writer.PublishZoneEvents(ctx, []domain.ZoneEvent{event}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testZoneTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from zone topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "zone-1", string(msg.Key))
	assert.Equal(t, string(domain.ZoneCreated), headers["kind"])
	assert.Equal(t, string(domain.HazardTsunami), headers["hazard"])
	_, err = time.Parse(time.RFC3339, headers["emitted_at"])
	assert.NoError(t, err, "emitted_at should be valid RFC3339")

	var got domain.ZoneEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "zone-1", got.Zone.ID)
}

// TestEngineEndToEnd wires the full path with real Kafka: raw signals on the
// signal topic flow through the ingest loop into storage, a clustering pass
// promotes them to a zone, and the zone event lands on the zone topic.
func TestEngineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSignalTopic)
	createTopic(t, broker, testZoneTopic)
	cfg := testConfig(broker)

	// Publish five reports within ~100m of each other.
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSignalTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, 5)
	for i := 0; i < 5; i++ {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("report-%d", i)),
			Value: rawSignalPayload(t, fmt.Sprintf("reporter-%d", i), float64(i)*0.0002),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	writer := kafkaadapter.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	eng, store := newTestEngine(t, writer)

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	loop := engine.NewLoop(eng, reader, 2, 50)
	loopCtx, loopCancel := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	// Wait until all five signals are stored.
	require.Eventually(t, func() bool {
		stored, err := store.RecentSignals(ctx, time.Now().UTC().Add(-time.Hour))
		return err == nil && len(stored) == 5
	}, 60*time.Second, 250*time.Millisecond, "signals flow from kafka into storage")

	loopCancel()
	require.NoError(t, <-loopDone)

	// A clustering pass promotes the reports to one zone and publishes it.
	events, err := eng.RunClustering(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ZoneCreated, events[0].Kind)
	assert.Equal(t, 5, events[0].Zone.ReportCount)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testZoneTopic,
		GroupID:     fmt.Sprintf("test-zones-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "zone event published to zone topic")

	var got domain.ZoneEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, domain.ZoneCreated, got.Kind)
	assert.Equal(t, domain.HazardTsunami, got.Zone.Hazard)
	assert.Equal(t, events[0].Zone.ID, got.Zone.ID)
}

// TestLoopPoisonPill verifies that an undecodable message is skipped and
// committed while valid messages continue to flow.
func TestLoopPoisonPill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSignalTopic)
	createTopic(t, broker, testZoneTopic)
	cfg := testConfig(broker)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSignalTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: rawSignalPayload(t, "reporter-1", 0)},
	))

	eng, store := newTestEngine(t, nil)

	reader := kafkaadapter.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	loop := engine.NewLoop(eng, reader, 1, 50)
	loopCtx, loopCancel := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	require.Eventually(t, func() bool {
		stored, err := store.RecentSignals(ctx, time.Now().UTC().Add(-time.Hour))
		return err == nil && len(stored) == 1
	}, 60*time.Second, 250*time.Millisecond, "valid signal survives the poison pill")

	loopCancel()
	require.NoError(t, <-loopDone)
}
