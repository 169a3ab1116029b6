package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/camera"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/services/detection"
)

func TestNewTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "10.0.0.5"
	require.Equal(t, "mqtt tcp://10.0.0.5:1883", newTransport(cfg).Name())

	cfg.Control.Transport = config.TransportKafka
	cfg.Control.Kafka.Brokers = []string{"k1:9092", "k2:9092"}
	require.Equal(t, "kafka k1:9092,k2:9092", newTransport(cfg).Name())
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	source, closeSource := newSource(cfg)
	defer closeSource()
	require.IsType(t, &camera.Dir{}, source)

	cfg.Camera.Source = config.SourceDevice
	source, closeDevice := newSource(cfg)
	defer closeDevice()
	require.IsType(t, &camera.Device{}, source)
}

func TestNewEngine_HTTP(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.Endpoint = "http://detector:8000/"

	engine, closeEngine, err := newEngine(cfg)
	require.NoError(t, err)
	defer closeEngine()

	client, ok := engine.(*detection.Client)
	require.True(t, ok)
	require.Equal(t, "http://detector:8000", client.URL)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	require.Equal(t, "dev\n", out.String())
}
