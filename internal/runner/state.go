package runner

import (
	"time"

	"github.com/samber/lo"
)

type State string

const (
	StateIdle            State = "idle"
	StateAwaitingCapture State = "awaiting_capture"
	StateInferring       State = "inferring"
	StateReporting       State = "reporting"
)

// IsValidTransition проверяет допустимость перехода между состояниями цикла
func IsValidTransition(current, next State) bool {
	transitions := map[State][]State{
		StateIdle:            {StateAwaitingCapture},
		StateAwaitingCapture: {StateInferring, StateIdle}, // Idle если снимок не получен
		StateInferring:       {StateReporting, StateIdle}, // Idle если модель упала
		StateReporting:       {StateIdle},
	}

	return lo.Contains(transitions[current], next)
}

// Counters счётчики циклов с момента запуска
type Counters struct {
	Triggers          int64 `json:"triggers"`
	Rejected          int64 `json:"rejected_triggers"`
	Captures          int64 `json:"captures"`
	CaptureFailures   int64 `json:"capture_failures"`
	InferenceFailures int64 `json:"inference_failures"`
	Reports           int64 `json:"reports_dispatched"`
	Releases          int64 `json:"releases_sent"`
	ReleaseFailures   int64 `json:"release_failures"`
}

// Snapshot копия состояния для API и watchdog
type Snapshot struct {
	State    State     `json:"state"`
	CycleID  string    `json:"cycle_id,omitempty"`
	BoardID  string    `json:"board_id,omitempty"`
	Since    time.Time `json:"since"`
	Counters Counters  `json:"counters"`
}
