package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/control"
)

type Config struct {
	Brokers       []string
	GroupID       string
	InboundTopic  string
	OutboundTopic string
}

// Transport управляющий канал поверх Kafka: входящий топик читает consumer group,
// исходящий пишет синхронный продюсер.
type Transport struct {
	cfg Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	producer *Producer
	handler  control.Handler
}

func New(cfg Config) *Transport {
	return &Transport{cfg: cfg}
}

func (t *Transport) Name() string {
	return "kafka " + strings.Join(t.cfg.Brokers, ",")
}

func (t *Transport) Connect(h control.Handler) error {
	if len(t.cfg.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.cancel = cancel
	t.handler = h
	t.mu.Unlock()

	go t.run(ctx, h)
	return nil
}

// run поднимает клиентов с повторами и держит цикл потребления до отмены
func (t *Transport) run(ctx context.Context, h control.Handler) {
	var (
		consumer *Consumer
		producer *Producer
		err      error
	)

	for attempt := 1; ; attempt++ {
		consumer, producer, err = t.dial()
		if err == nil {
			break
		}
		h.OnError(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		h.OnReconnecting(attempt)
	}

	t.mu.Lock()
	t.producer = producer
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.producer == producer {
			t.producer = nil
		}
		t.mu.Unlock()

		if err := consumer.Close(); err != nil {
			h.OnError(fmt.Errorf("close consumer: %w", err))
		}
		if err := producer.Close(); err != nil {
			h.OnError(err)
		}
	}()

	consumer.Listen(ctx, h)
}

func (t *Transport) dial() (*Consumer, *Producer, error) {
	consumer, err := NewConsumer(t.cfg.Brokers, t.cfg.GroupID, t.cfg.InboundTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("create consumer: %w", err)
	}

	producer, err := NewProducer(t.cfg.Brokers, t.cfg.OutboundTopic)
	if err != nil {
		_ = consumer.Close()
		return nil, nil, fmt.Errorf("create producer: %w", err)
	}

	return consumer, producer, nil
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Publish не ждёт брокера: отправка идёт в фоне, ошибка уходит в OnError
func (t *Transport) Publish(event string, payload []byte) error {
	t.mu.Lock()
	producer, h := t.producer, t.handler
	t.mu.Unlock()

	if producer == nil {
		return control.ErrNotConnected
	}

	go func() {
		if err := producer.Send(event, payload); err != nil {
			h.OnError(err)
		}
	}()
	return nil
}

var _ control.Transport = (*Transport)(nil)
