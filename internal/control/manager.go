package control

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

const notifyBuffer = 16

var ErrNotConnected = errors.New("control channel is not connected")

// Handler колбэки транспорта. Транспорт вызывает их из своих горутин.
type Handler struct {
	OnConnect      func()
	OnDisconnect   func(err error)
	OnReconnecting func(attempt int)
	OnError        func(err error)
	OnEvent        func(event string, payload []byte)
}

// Transport постоянное двунаправленное соединение с сервером координации.
// Переподключение с backoff целиком на стороне транспорта.
type Transport interface {
	// Connect запускает подключение и не ждёт его завершения
	Connect(h Handler) error
	Disconnect()
	Publish(event string, payload []byte) error
	Name() string
}

// Manager владеет состоянием управляющего канала
type Manager struct {
	transport Transport
	log       *logsink.Logger

	mu    sync.Mutex
	state models.ConnectionState
	// gen отсекает колбэки от уже закрытой сессии
	gen uint64

	triggers chan models.TriggerEvent
	states   chan models.ConnectionState
}

func NewManager(transport Transport, log *logsink.Logger) *Manager {
	return &Manager{
		transport: transport,
		log:       log,
		state:     models.Disconnected,
		triggers:  make(chan models.TriggerEvent, notifyBuffer),
		states:    make(chan models.ConnectionState, notifyBuffer),
	}
}

// Triggers события START, по одному на корректное сообщение
func (m *Manager) Triggers() <-chan models.TriggerEvent {
	return m.triggers
}

// States уведомления о каждом переходе состояния
func (m *Manager) States() <-chan models.ConnectionState {
	return m.states
}

// State текущее состояние для внешних наблюдателей (API)
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != models.Disconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	m.setStateLocked(models.Connecting)
	m.mu.Unlock()

	m.log.Printf("Control: connecting via %s", m.transport.Name())

	if err := m.transport.Connect(m.handler(gen)); err != nil {
		m.log.Printf("Control: connect failed: %v", err)
		m.mu.Lock()
		if m.gen == gen {
			m.setStateLocked(models.Disconnected)
		}
		m.mu.Unlock()
	}
}

// Disconnect закрывает канал. Состояние меняется до возврата,
// даже если транспорт закрывается асинхронно.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == models.Disconnected {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.setStateLocked(models.Disconnected)
	m.mu.Unlock()

	m.log.Printf("Control: disconnecting from server")
	m.transport.Disconnect()
}

// Emit отправляет событие только в состоянии Connected. Без очереди и повторов.
func (m *Manager) Emit(event string, payload any) error {
	if m.State() != models.Connected {
		m.log.Printf("Control: not connected, dropping %s", event)
		return fmt.Errorf("emit %s: %w", event, ErrNotConnected)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Printf("Control: failed to encode %s: %v", event, err)
		return fmt.Errorf("encode %s: %w", event, err)
	}

	if err := m.transport.Publish(event, data); err != nil {
		m.log.Printf("Control: failed to send %s: %v", event, err)
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Release сигнал на отпуск платы
func (m *Manager) Release() error {
	if err := m.Emit(models.EventReleaseSignal, models.ReleaseMessage{Message: models.MessageRelease}); err != nil {
		return err
	}
	m.log.Printf("Control: release signal sent")
	return nil
}

func (m *Manager) handler(gen uint64) Handler {
	return Handler{
		OnConnect: func() {
			if m.transition(gen, models.Connected) {
				m.log.Printf("Control: connected")
			}
		},
		OnDisconnect: func(err error) {
			if m.transition(gen, models.Disconnected) {
				m.log.Printf("Control: connection lost: %v", err)
			}
		},
		OnReconnecting: func(attempt int) {
			if !m.current(gen) {
				return
			}
			m.transition(gen, models.Connecting)
			m.log.Printf("Control: reconnect attempt %d", attempt)
		},
		OnError: func(err error) {
			if m.current(gen) {
				m.log.Printf("Control: transport error: %v", err)
			}
		},
		OnEvent: func(event string, payload []byte) {
			if m.current(gen) {
				m.handleEvent(event, payload)
			}
		},
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// transition меняет состояние, если сессия актуальна и состояние другое
func (m *Manager) transition(gen uint64, next models.ConnectionState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.state == next {
		return false
	}
	m.setStateLocked(next)
	return true
}

func (m *Manager) setStateLocked(next models.ConnectionState) {
	m.state = next
	select {
	case m.states <- next:
	default:
		m.log.Printf("Control: state listener is slow, dropped %s notification", next)
	}
}

func (m *Manager) handleEvent(event string, payload []byte) {
	if event != models.EventStartDetection {
		return
	}

	m.log.Printf("Control: received %s: %s", event, payload)

	trigger, err := ParseTrigger(payload)
	if err != nil {
		m.log.Printf("Control: dropping %s: %v", event, err)
		return
	}

	select {
	case m.triggers <- trigger:
	default:
		m.log.Printf("Control: trigger listener is slow, dropped board %s", trigger.BoardID)
	}
}
