package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/control"
)

const (
	connectRetryInterval = 2 * time.Second
	maxReconnectInterval = 30 * time.Second
	publishTimeout       = 5 * time.Second
	disconnectQuiesce    = 250 // ms
)

type Config struct {
	Broker         string
	ClientID       string
	InboundPrefix  string
	OutboundPrefix string
	QoS            byte
}

// Transport управляющий канал поверх MQTT.
// Событие = последний сегмент топика: {inbound}/start_detection, {outbound}/release_signal.
type Transport struct {
	cfg Config
	// newClient подменяется в тестах
	newClient func(o *paho.ClientOptions) paho.Client

	mu      sync.Mutex
	client  paho.Client
	handler control.Handler
}

// session счётчик попыток одного Connect; колбэки старого клиента его не трогают
type session struct {
	mu       sync.Mutex
	attempts int
	// initial пока не было ни одного успешного подключения
	initial bool
}

func New(cfg Config) *Transport {
	return &Transport{cfg: cfg, newClient: paho.NewClient}
}

func (t *Transport) Name() string {
	return "mqtt " + t.cfg.Broker
}

// Connect настраивает клиента с автопереподключением и запускает подключение.
// Расписание повторов остаётся на стороне paho. Предыдущий клиент закрывается.
func (t *Transport) Connect(h control.Handler) error {
	if t.cfg.Broker == "" {
		return errors.New("mqtt broker is not configured")
	}

	client := t.newClient(t.options(h))

	t.mu.Lock()
	old := t.client
	t.client = client
	t.handler = h
	t.mu.Unlock()

	// два клиента с одним ClientID выбивают друг друга с брокера
	if old != nil {
		old.Disconnect(disconnectQuiesce)
	}

	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			h.OnError(fmt.Errorf("mqtt connect: %w", err))
		}
	}()

	return nil
}

func (t *Transport) options(h control.Handler) *paho.ClientOptions {
	s := &session{initial: true}

	opts := paho.NewClientOptions()
	opts.AddBroker(t.cfg.Broker)
	opts.SetClientID(t.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetMaxReconnectInterval(maxReconnectInterval)

	opts.SetOnConnectHandler(func(c paho.Client) {
		s.mu.Lock()
		s.attempts = 0
		s.initial = false
		s.mu.Unlock()

		t.subscribe(c, h)
		h.OnConnect()
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.OnDisconnect(err)
	})

	// Повторы после обрыва
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		s.mu.Lock()
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		h.OnReconnecting(attempt)
	})

	// Повторы первого подключения (ConnectRetry): токен Connect до успеха не завершается,
	// поэтому каждая попытка после первой сообщается здесь
	opts.SetConnectionAttemptHandler(func(broker *url.URL, tlsCfg *tls.Config) *tls.Config {
		s.mu.Lock()
		if !s.initial {
			s.mu.Unlock()
			return tlsCfg
		}
		s.attempts++
		retry := s.attempts - 1
		s.mu.Unlock()

		if retry > 0 {
			h.OnError(fmt.Errorf("mqtt connect to %s failed, retrying", broker.Host))
			h.OnReconnecting(retry)
		}
		return tlsCfg
	})

	return opts
}

func (t *Transport) subscribe(c paho.Client, h control.Handler) {
	topic := InboundFilter(t.cfg.InboundPrefix)

	token := c.Subscribe(topic, t.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		h.OnEvent(EventName(msg.Topic()), msg.Payload())
	})

	// обработчики paho нельзя блокировать
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			h.OnError(fmt.Errorf("mqtt subscribe %s: %w", topic, err))
		}
	}()
}

func (t *Transport) Disconnect() {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client != nil {
		go client.Disconnect(disconnectQuiesce)
	}
}

// Publish ставит сообщение в очередь paho и не ждёт подтверждения.
// Ошибка доставки приходит через OnError.
func (t *Transport) Publish(event string, payload []byte) error {
	t.mu.Lock()
	client, h := t.client, t.handler
	t.mu.Unlock()

	if client == nil || !client.IsConnectionOpen() {
		return control.ErrNotConnected
	}

	topic := OutboundTopic(t.cfg.OutboundPrefix, event)
	token := client.Publish(topic, t.cfg.QoS, false, payload)

	go func() {
		if !token.WaitTimeout(publishTimeout) {
			h.OnError(fmt.Errorf("mqtt publish %s: timeout", topic))
			return
		}
		if err := token.Error(); err != nil {
			h.OnError(fmt.Errorf("mqtt publish %s: %w", topic, err))
		}
	}()

	return nil
}

func InboundFilter(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/+"
}

func OutboundTopic(prefix, event string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + event
}

// EventName имя события из топика
func EventName(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

var _ control.Transport = (*Transport)(nil)
