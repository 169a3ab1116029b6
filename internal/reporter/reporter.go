package reporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

const (
	defaultTimeout = 10 * time.Second
	// сколько тела ответа попадает в лог
	maxLoggedBody = 512
)

var ErrBadStatus = errors.New("unexpected report status")

// Reporter отправляет вердикт на сервер координации. Без повторов.
type Reporter struct {
	url        string
	httpClient *http.Client
	log        *logsink.Logger
}

func New(url string, timeout time.Duration, log *logsink.Logger) *Reporter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reporter{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Encode собирает тело запроса; картинка в base64
func Encode(v models.Verdict) ([]byte, error) {
	detections := v.Detections
	if detections == nil {
		detections = []models.Detection{}
	}
	return json.Marshal(models.DetectionReport{
		HasDefect:  v.HasDefect,
		BoardID:    v.BoardID,
		Image:      base64.StdEncoding.EncodeToString(v.Image),
		Detections: detections,
	})
}

// Dispatch запускает отправку в фоне и сразу возвращается
func (r *Reporter) Dispatch(v models.Verdict) {
	go func() {
		_ = r.Report(context.Background(), v)
	}()
}

// Report отправляет вердикт и логирует результат
func (r *Reporter) Report(ctx context.Context, v models.Verdict) error {
	err := r.send(ctx, v)
	if err != nil {
		r.log.Printf("Reporter: board %s report failed: %v", v.BoardID, err)
	}
	return err
}

func (r *Reporter) send(ctx context.Context, v models.Verdict) error {
	body, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s, body: %s", ErrBadStatus, resp.Status, respBody)
	}

	r.log.Printf("Reporter: board %s reported (has_defect=%t): %s %s", v.BoardID, v.HasDefect, resp.Status, respBody)
	return nil
}
