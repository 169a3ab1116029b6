package models

import "time"

// Имена событий управляющего канала
const (
	EventStartDetection = "start_detection"
	EventReleaseSignal  = "release_signal"
)

// Значения поля message в событиях канала
const (
	MessageStart   = "START"
	MessageRelease = "RELEASE"
)

type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// ControlMessage тело события start_detection.
// Поля указатели, чтобы отличать отсутствующее поле от пустого.
type ControlMessage struct {
	Message *string `json:"message"`
	Data    *string `json:"data"`
}

// ReleaseMessage тело исходящего события release_signal
type ReleaseMessage struct {
	Message string `json:"message"`
}

// TriggerEvent сигнал о том, что плата приехала и её нужно проверить
type TriggerEvent struct {
	BoardID    string
	RawMessage string
}

// Detection представляет один найденный дефект
type Detection struct {
	Score float64    `json:"score"`
	Box   [4]float64 `json:"box"` // [x1, y1, x2, y2], нормированные координаты
}

// Verdict результат одного цикла проверки
type Verdict struct {
	BoardID    string
	HasDefect  bool
	Detections []Detection
	Image      []byte
}

// DetectionReport тело запроса POST /detection_result
type DetectionReport struct {
	HasDefect  bool        `json:"has_defect"`
	BoardID    string      `json:"board_id"`
	Image      string      `json:"image"` // base64
	Detections []Detection `json:"detections"`
}

type CycleOutcome string

const (
	OutcomeReported        CycleOutcome = "reported"
	OutcomeCaptureFailed   CycleOutcome = "capture_failed"
	OutcomeInferenceFailed CycleOutcome = "inference_failed"
)

// InspectionRecord итог цикла для архива и журнала
type InspectionRecord struct {
	CycleID    string
	BoardID    string
	Outcome    CycleOutcome
	HasDefect  bool
	Detections []Detection
	Image      []byte
	CreatedAt  time.Time
}
