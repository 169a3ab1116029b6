package logsink

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

const DefaultRingSize = 100

// Sink принимает готовые строки лога
type Sink interface {
	Emit(msg string)
}

// Logger рассылает сообщение во все приёмники.
// Нулевой *Logger пишет через стандартный log.
type Logger struct {
	sinks []Sink
}

func New(sinks ...Sink) *Logger {
	return &Logger{sinks: sinks}
}

func (l *Logger) Emit(msg string) {
	if l == nil || len(l.sinks) == 0 {
		log.Print(msg)
		return
	}
	for _, s := range l.sinks {
		s.Emit(msg)
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.Emit(fmt.Sprintf(format, args...))
}

// Std пишет в *log.Logger
type Std struct {
	logger *log.Logger
}

func NewStd() *Std {
	return &Std{logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}
}

func (s *Std) Emit(msg string) {
	_ = s.logger.Output(3, msg)
}

type Entry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Ring хранит последние size записей
type Ring struct {
	mu      sync.RWMutex
	size    int
	entries []Entry
	now     func() time.Time
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{
		size:    size,
		entries: make([]Entry, 0, size),
		now:     time.Now,
	}
}

func (r *Ring) Emit(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{Time: r.now(), Message: msg})
	if over := len(r.entries) - r.size; over > 0 {
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
}

// Entries возвращает копию записей, старые первыми
func (r *Ring) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
