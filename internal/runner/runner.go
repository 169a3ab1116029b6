package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/camera"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

const (
	DefaultSettleDelay = time.Second

	eventsBuffer  = 16
	recordTimeout = 30 * time.Second
)

// Controller управляющий канал с точки зрения цикла проверки
type Controller interface {
	Triggers() <-chan models.TriggerEvent
	States() <-chan models.ConnectionState
	Release() error
}

type Inferer interface {
	Infer(ctx context.Context, image []byte) (models.Verdict, error)
}

type Dispatcher interface {
	Dispatch(v models.Verdict)
}

// Recorder сохраняет итог цикла (архив, журнал). Ошибки только логируются.
type Recorder interface {
	Record(ctx context.Context, rec models.InspectionRecord) error
}

type Options struct {
	SettleDelay time.Duration
	Clock       clock.Clock
	Log         *logsink.Logger
	Recorders   []Recorder
}

type cycle struct {
	id      string
	boardID string
}

type pendingRelease struct {
	boardID string
	timer   clock.Timer
}

// события, которые фоновые горутины и таймеры возвращают в цикл
type captured struct {
	cycleID string
	image   []byte
	err     error
}

type inferred struct {
	cycleID string
	verdict models.Verdict
	err     error
}

type releaseDue struct {
	cycleID string
}

// Runner конечный автомат станции. Всё состояние меняется только в горутине Run.
type Runner struct {
	control   Controller
	source    camera.Source
	pipeline  Inferer
	reporter  Dispatcher
	recorders []Recorder

	clock       clock.Clock
	settleDelay time.Duration
	log         *logsink.Logger

	events chan any

	state    State
	current  *cycle
	releases map[string]pendingRelease

	mu       sync.RWMutex
	snapshot Snapshot
}

func New(control Controller, source camera.Source, pipeline Inferer, reporter Dispatcher, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	r := &Runner{
		control:     control,
		source:      source,
		pipeline:    pipeline,
		reporter:    reporter,
		recorders:   opts.Recorders,
		clock:       opts.Clock,
		settleDelay: opts.SettleDelay,
		log:         opts.Log,
		events:      make(chan any, eventsBuffer),
		state:       StateIdle,
		releases:    make(map[string]pendingRelease),
	}
	r.snapshot = Snapshot{State: StateIdle, Since: r.clock.Now()}
	return r
}

// Snapshot потокобезопасная копия состояния
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Run обрабатывает триггеры и результаты фоновых операций до отмены ctx
func (r *Runner) Run(ctx context.Context) {
	r.log.Printf("Runner: waiting for triggers")
	for {
		select {
		case <-ctx.Done():
			for id, p := range r.releases {
				p.timer.Stop()
				delete(r.releases, id)
			}
			r.log.Printf("Runner: shutting down")
			return
		case trigger := <-r.control.Triggers():
			r.onTrigger(ctx, trigger)
		case state := <-r.control.States():
			r.log.Printf("Runner: control channel %s", state)
		case ev := <-r.events:
			switch ev := ev.(type) {
			case captured:
				r.onCaptured(ctx, ev)
			case inferred:
				r.onInferred(ev)
			case releaseDue:
				r.onReleaseDue(ev)
			}
		}
	}
}

func (r *Runner) onTrigger(ctx context.Context, trigger models.TriggerEvent) {
	r.count(func(c *Counters) { c.Triggers++ })

	if r.state != StateIdle {
		r.count(func(c *Counters) { c.Rejected++ })
		r.log.Printf("Runner %s: unexpected trigger while %s with board %s, dropped",
			trigger.BoardID, r.state, r.current.boardID)
		return
	}

	c := &cycle{id: uuid.NewString(), boardID: trigger.BoardID}
	r.current = c
	r.setState(StateAwaitingCapture)
	r.count(func(c *Counters) { c.Captures++ })
	r.log.Printf("Runner %s: capture requested (cycle %s)", c.boardID, c.id)

	go func() {
		image, err := r.source.Capture(ctx)
		r.post(ctx, captured{cycleID: c.id, image: image, err: err})
	}()
}

func (r *Runner) onCaptured(ctx context.Context, ev captured) {
	c := r.current
	if c == nil || c.id != ev.cycleID || r.state != StateAwaitingCapture {
		return
	}

	if ev.err == nil && len(ev.image) == 0 {
		ev.err = camera.ErrNoImage
	}
	if ev.err != nil {
		r.count(func(c *Counters) { c.CaptureFailures++ })
		r.log.Printf("Runner %s: capture failed: %v", c.boardID, ev.err)
		r.record(models.InspectionRecord{CycleID: c.id, BoardID: c.boardID, Outcome: models.OutcomeCaptureFailed})
		r.finish()
		return
	}

	r.log.Printf("Runner %s: image captured (%d bytes)", c.boardID, len(ev.image))

	// Отпуск платы зависит только от снимка, не от вердикта
	cycleID := c.id
	r.releases[cycleID] = pendingRelease{
		boardID: c.boardID,
		timer: r.clock.AfterFunc(r.settleDelay, func() {
			r.post(ctx, releaseDue{cycleID: cycleID})
		}),
	}

	r.setState(StateInferring)
	image := ev.image
	go func() {
		verdict, err := r.pipeline.Infer(ctx, image)
		r.post(ctx, inferred{cycleID: cycleID, verdict: verdict, err: err})
	}()
}

func (r *Runner) onInferred(ev inferred) {
	c := r.current
	if c == nil || c.id != ev.cycleID || r.state != StateInferring {
		return
	}

	if ev.err != nil {
		r.count(func(c *Counters) { c.InferenceFailures++ })
		r.log.Printf("Runner %s: inference failed: %v", c.boardID, ev.err)

		// Непроверенную плату не отпускаем
		if p, ok := r.releases[c.id]; ok {
			p.timer.Stop()
			delete(r.releases, c.id)
			r.log.Printf("Runner %s: release withheld", c.boardID)
		} else {
			r.log.Printf("Runner %s: board was already released before inference failed", c.boardID)
		}

		r.record(models.InspectionRecord{CycleID: c.id, BoardID: c.boardID, Outcome: models.OutcomeInferenceFailed})
		r.finish()
		return
	}

	verdict := ev.verdict
	verdict.BoardID = c.boardID
	r.log.Printf("Runner %s: verdict has_defect=%t, %d detections", c.boardID, verdict.HasDefect, len(verdict.Detections))

	r.setState(StateReporting)
	r.reporter.Dispatch(verdict)
	r.count(func(c *Counters) { c.Reports++ })

	r.record(models.InspectionRecord{
		CycleID:    c.id,
		BoardID:    c.boardID,
		Outcome:    models.OutcomeReported,
		HasDefect:  verdict.HasDefect,
		Detections: verdict.Detections,
		Image:      verdict.Image,
	})
	r.finish()
}

func (r *Runner) onReleaseDue(ev releaseDue) {
	p, ok := r.releases[ev.cycleID]
	if !ok {
		return
	}
	delete(r.releases, ev.cycleID)

	if err := r.control.Release(); err != nil {
		r.count(func(c *Counters) { c.ReleaseFailures++ })
		r.log.Printf("Runner %s: release not sent: %v", p.boardID, err)
		return
	}
	r.count(func(c *Counters) { c.Releases++ })
	r.log.Printf("Runner %s: board released", p.boardID)
}

// finish возвращает автомат в Idle
func (r *Runner) finish() {
	r.setState(StateIdle)
	r.current = nil
}

func (r *Runner) setState(next State) {
	if !IsValidTransition(r.state, next) {
		r.log.Printf("Runner: invalid transition %s -> %s", r.state, next)
		return
	}
	r.state = next

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.State = next
	r.snapshot.Since = r.clock.Now()
	if r.current != nil && next != StateIdle {
		r.snapshot.CycleID = r.current.id
		r.snapshot.BoardID = r.current.boardID
	} else {
		r.snapshot.CycleID = ""
		r.snapshot.BoardID = ""
	}
}

func (r *Runner) count(f func(c *Counters)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f(&r.snapshot.Counters)
}

// post возвращает результат в цикл; после остановки Run результат теряется
func (r *Runner) post(ctx context.Context, ev any) {
	select {
	case r.events <- ev:
	case <-ctx.Done():
	}
}

func (r *Runner) record(rec models.InspectionRecord) {
	if len(r.recorders) == 0 {
		return
	}
	rec.CreatedAt = r.clock.Now().UTC()

	for _, rc := range r.recorders {
		go func(rc Recorder) {
			ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			defer cancel()

			if err := rc.Record(ctx, rec); err != nil {
				r.log.Printf("Runner %s: failed to record cycle %s: %v", rec.BoardID, rec.CycleID, err)
			}
		}(rc)
	}
}
