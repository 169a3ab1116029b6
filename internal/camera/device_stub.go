//go:build !gocv
// +build !gocv

package camera

import (
	"context"
	"errors"
)

// Device заглушка для сборки без OpenCV
type Device struct {
	id int
}

func NewDevice(id int) *Device {
	return &Device{id: id}
}

// Capture возвращает ошибку, если сборка без тега gocv.
func (d *Device) Capture(ctx context.Context) ([]byte, error) {
	return nil, errors.New("gocv build tag is not enabled")
}

func (d *Device) Close() error {
	return nil
}
