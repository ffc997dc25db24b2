package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/pkg/config"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, event Event) error {
	return m.Called(ctx, topic, key, event).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	t.Parallel()

	ok := new(mockPublisher)
	bad := new(mockPublisher)
	boom := errors.New("broker down")

	ev := New("order_created", map[string]any{"id": 1})
	ok.On("Publish", mock.Anything, TopicOrders, "1", ev).Return(nil).Once()
	bad.On("Publish", mock.Anything, TopicOrders, "1", ev).Return(boom).Once()
	ok.On("Close").Return(nil).Once()
	bad.On("Close").Return(nil).Once()

	m := Multi{ok, bad}
	err := m.Publish(context.Background(), TopicOrders, "1", ev)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, m.Close())

	ok.AssertExpectations(t)
	bad.AssertExpectations(t)
}

func TestNoop(t *testing.T) {
	t.Parallel()
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), TopicUsers, "k", New("x", nil)))
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	brokers := config.CSV(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		t.Skip("KAFKA_BROKERS not set")
	}
	topic := "test_events_" + uuid.NewString()[:8]

	pub, err := NewKafkaPublisher(brokers)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// the first write auto-creates the topic and may race leader election
	var pubErr error
	for i := 0; i < 5; i++ {
		if pubErr = pub.Publish(ctx, topic, "42", New("order_created", map[string]any{"id": 42})); pubErr == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, pubErr)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   time.Second,
	})
	defer r.Close()

	m, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", string(m.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(m.Value, &got))
	assert.Equal(t, "order_created", got["type"])
}

func TestAMQPPublisher_Publish(t *testing.T) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		t.Skip("RABBITMQ_URL not set")
	}
	exchange := "teashop_test"

	pub, err := NewAMQPPublisher(url, exchange)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "user_events.#", exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), TopicUsers, "7", New("user_registered", map[string]any{"id": 7})))

	select {
	case d := <-deliveries:
		assert.Equal(t, "user_events.user_registered", d.RoutingKey)
		assert.Equal(t, "7", d.MessageId)
	case <-time.After(10 * time.Second):
		t.Fatal("no delivery")
	}
}
