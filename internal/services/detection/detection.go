package detection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/inference"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client движок инференса, который живёт за HTTP: POST {URL}/predict
type Client struct {
	URL        string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		URL:        strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type predictResponse struct {
	Detections []models.Detection `json:"detections"`
}

// Run отправляет изображение JPEG байтами на /predict вместе с порогами модели
func (c *Client) Run(ctx context.Context, imageData []byte, iouThreshold, confidenceThreshold float64) ([]models.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Создаем form field с правильным Content-Type
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="board.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}

	fields := map[string]float64{
		"iou_threshold":        iouThreshold,
		"confidence_threshold": confidenceThreshold,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, strconv.FormatFloat(value, 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	return out.Detections, nil
}

var _ inference.Engine = (*Client)(nil)
