package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer создаёт продюсер с настройками
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	// сигнал отпуска платы не повторяем
	config.Producer.Retry.Max = 0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return newProducer(producer, topic), nil
}

func newProducer(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
	}
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// Send отправляет одно событие в Kafka, ключ - имя события
func (p *Producer) Send(event string, payload []byte) error {
	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(kafkaMsg); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
