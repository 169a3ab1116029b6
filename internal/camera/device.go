//go:build gocv
// +build gocv

package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const jpegQuality = 80

// Device камера через OpenCV. Устройство открывается при первом снимке
// и остаётся открытым.
type Device struct {
	id int

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

func NewDevice(id int) *Device {
	return &Device{id: id}
}

func (d *Device) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		capture, err := gocv.OpenVideoCapture(d.id)
		if err != nil {
			return nil, fmt.Errorf("open camera %d: %w", d.id, err)
		}
		d.capture = capture
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := d.capture.Read(&mat); !ok || mat.Empty() {
		// после сбоя переоткрываем устройство на следующем снимке
		d.capture.Close()
		d.capture = nil
		return nil, fmt.Errorf("%w: camera %d returned empty frame", ErrNoImage, d.id)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// буфер принадлежит OpenCV, копируем
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	return err
}
