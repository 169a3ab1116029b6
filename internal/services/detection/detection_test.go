package detection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

func TestClient_Run(t *testing.T) {
	var (
		path, iou, confidence, filename string
		data                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		iou = r.FormValue("iou_threshold")
		confidence = r.FormValue("confidence_threshold")

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		filename = header.Filename
		data, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"score":0.91,"box":[0.1,0.1,0.4,0.4]},{"score":0.2,"box":[0.5,0.5,0.7,0.7]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	got, err := c.Run(context.Background(), []byte{0xff, 0xd8, 0xff}, 0.5, 0.3)
	require.NoError(t, err)
	require.Equal(t, []models.Detection{
		{Score: 0.91, Box: [4]float64{0.1, 0.1, 0.4, 0.4}},
		{Score: 0.2, Box: [4]float64{0.5, 0.5, 0.7, 0.7}},
	}, got)

	require.Equal(t, "/predict", path)
	require.Equal(t, "0.5", iou)
	require.Equal(t, "0.3", confidence)
	require.Equal(t, "board.jpg", filename)
	require.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}

func TestClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot decode image", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Run(context.Background(), []byte("x"), 0.5, 0.3)
	require.ErrorContains(t, err, "422")
	require.ErrorContains(t, err, "cannot decode image")
}
