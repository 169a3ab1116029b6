package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "internal/config/local.yaml"

const (
	TransportMQTT  = "mqtt"
	TransportKafka = "kafka"

	SourceDir    = "dir"
	SourceDevice = "device"

	EngineHTTP = "http"
	EngineONNX = "onnx"
)

// Config структура конфига станции
type Config struct {
	Server struct {
		Host       string `yaml:"host" env:"SERVER_HOST"`
		Port       int    `yaml:"port" env:"SERVER_PORT"`
		ReportPath string `yaml:"report_path" env:"SERVER_REPORT_PATH"`
	} `yaml:"server"`

	Control struct {
		Transport string `yaml:"transport" env:"CONTROL_TRANSPORT"`

		MQTT struct {
			Broker         string `yaml:"broker" env:"MQTT_BROKER"`
			ClientID       string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
			InboundPrefix  string `yaml:"inbound_prefix" env:"MQTT_INBOUND_PREFIX"`
			OutboundPrefix string `yaml:"outbound_prefix" env:"MQTT_OUTBOUND_PREFIX"`
			QoS            byte   `yaml:"qos" env:"MQTT_QOS"`
		} `yaml:"mqtt"`

		Kafka struct {
			Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
			GroupID       string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
			InboundTopic  string   `yaml:"inbound_topic" env:"KAFKA_INBOUND_TOPIC"`
			OutboundTopic string   `yaml:"outbound_topic" env:"KAFKA_OUTBOUND_TOPIC"`
		} `yaml:"kafka"`
	} `yaml:"control"`

	Camera struct {
		Source       string        `yaml:"source" env:"CAMERA_SOURCE"`
		Dir          string        `yaml:"dir" env:"CAMERA_DIR"`
		DeviceID     int           `yaml:"device_id" env:"CAMERA_DEVICE_ID"`
		TriggerDelay time.Duration `yaml:"trigger_delay" env:"CAMERA_TRIGGER_DELAY"`
	} `yaml:"camera"`

	Inference struct {
		Engine              string  `yaml:"engine" env:"INFERENCE_ENGINE"`
		Endpoint            string  `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
		ModelPath           string  `yaml:"model_path" env:"MODEL_PATH"`
		RuntimeLib          string  `yaml:"runtime_lib" env:"ONNXRUNTIME_LIB"`
		InputSize           int     `yaml:"input_size" env:"MODEL_INPUT_SIZE"`
		NumPredictions      int     `yaml:"num_predictions" env:"MODEL_NUM_PREDICTIONS"`
		IOUThreshold        float64 `yaml:"iou_threshold" env:"IOU_THRESHOLD"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	} `yaml:"inference"`

	Runner struct {
		SettleDelay time.Duration `yaml:"settle_delay" env:"SETTLE_DELAY"`
		StuckAfter  time.Duration `yaml:"stuck_after" env:"STUCK_AFTER"`
	} `yaml:"runner"`

	Report struct {
		Timeout time.Duration `yaml:"timeout" env:"REPORT_TIMEOUT"`
	} `yaml:"report"`

	Minio struct {
		Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
		Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
	} `yaml:"minio"`

	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	API struct {
		Addr string `yaml:"addr" env:"API_ADDR"`
	} `yaml:"api"`

	Log struct {
		RingSize int `yaml:"ring_size" env:"LOG_RING_SIZE"`
	} `yaml:"log"`
}

// Default значения, которые перекрываются YAML и затем окружением
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.ReportPath = "/detection_result"

	cfg.Control.Transport = TransportMQTT
	cfg.Control.MQTT.ClientID = "inspection-station"
	cfg.Control.MQTT.InboundPrefix = "station/in"
	cfg.Control.MQTT.OutboundPrefix = "station/out"
	cfg.Control.MQTT.QoS = 1
	cfg.Control.Kafka.GroupID = "inspection-station"
	cfg.Control.Kafka.InboundTopic = "station-commands"
	cfg.Control.Kafka.OutboundTopic = "station-signals"

	cfg.Camera.Source = SourceDir
	cfg.Camera.Dir = "images"
	cfg.Camera.TriggerDelay = time.Second

	cfg.Inference.Engine = EngineHTTP
	cfg.Inference.InputSize = 640
	cfg.Inference.NumPredictions = 8400
	cfg.Inference.IOUThreshold = 0.5
	cfg.Inference.ConfidenceThreshold = 0.3

	cfg.Runner.SettleDelay = time.Second
	cfg.Runner.StuckAfter = 30 * time.Second

	cfg.Report.Timeout = 10 * time.Second
	cfg.Minio.Bucket = "inspections"
	cfg.API.Addr = ":8090"
	cfg.Log.RingSize = 100
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	// Читаем YAML, если он есть
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, err
	}

	// Переменные окружения имеют приоритет
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.ReportPath, "/") {
		errs = append(errs, fmt.Errorf("server.report_path %q must start with /", c.Server.ReportPath))
	}

	switch c.Control.Transport {
	case TransportMQTT:
		if c.Control.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("control.mqtt.qos %d is invalid", c.Control.MQTT.QoS))
		}
	case TransportKafka:
		if len(c.Control.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("control.kafka.brokers is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown control.transport %q", c.Control.Transport))
	}

	switch c.Camera.Source {
	case SourceDir:
		if c.Camera.Dir == "" {
			errs = append(errs, errors.New("camera.dir is required for dir source"))
		}
	case SourceDevice:
	default:
		errs = append(errs, fmt.Errorf("unknown camera.source %q", c.Camera.Source))
	}

	switch c.Inference.Engine {
	case EngineHTTP:
		if c.Inference.Endpoint == "" {
			errs = append(errs, errors.New("inference.endpoint is required for http engine"))
		}
	case EngineONNX:
		if c.Inference.ModelPath == "" {
			errs = append(errs, errors.New("inference.model_path is required for onnx engine"))
		}
		if c.Inference.InputSize <= 0 || c.Inference.NumPredictions <= 0 {
			errs = append(errs, errors.New("inference.input_size and inference.num_predictions must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown inference.engine %q", c.Inference.Engine))
	}

	if c.Inference.IOUThreshold <= 0 || c.Inference.IOUThreshold >= 1 {
		errs = append(errs, fmt.Errorf("inference.iou_threshold %v must be in (0, 1)", c.Inference.IOUThreshold))
	}
	if c.Inference.ConfidenceThreshold <= 0 || c.Inference.ConfidenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("inference.confidence_threshold %v must be in (0, 1)", c.Inference.ConfidenceThreshold))
	}

	if c.Runner.SettleDelay < 0 {
		errs = append(errs, errors.New("runner.settle_delay must not be negative"))
	}

	return errors.Join(errs...)
}

// BaseURL адрес сервера координации
func (c *Config) BaseURL() string {
	return "http://" + net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ReportURL адрес для отправки результатов
func (c *Config) ReportURL() string {
	return c.BaseURL() + c.Server.ReportPath
}

// MQTTBroker брокер MQTT; по умолчанию на хосте сервера
func (c *Config) MQTTBroker() string {
	if c.Control.MQTT.Broker != "" {
		return c.Control.MQTT.Broker
	}
	return "tcp://" + net.JoinHostPort(c.Server.Host, "1883")
}
