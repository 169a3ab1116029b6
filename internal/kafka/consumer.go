package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/control"
)

const retryDelay = 5 * time.Second

// Consumer оборачивает Sarama ConsumerGroup на входящем топике команд
type Consumer struct {
	group sarama.ConsumerGroup
	topic string
}

// NewConsumer создаёт и возвращает новый Consumer
func NewConsumer(brokers []string, groupID, topic string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	// старые команды после перезапуска не нужны
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group: group,
		topic: topic,
	}, nil
}

// Listen блокирующий цикл потребления. Ошибка Consume считается обрывом
// канала: сообщаем о нём и повторяем через retryDelay.
func (c *Consumer) Listen(ctx context.Context, h control.Handler) {
	handler := &consumerGroupHandler{handler: h}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.group.Consume(ctx, []string{c.topic}, handler)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// ребалансировка, сессия начнётся заново
			continue
		}

		h.OnDisconnect(err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		attempt++
		h.OnReconnecting(attempt)
	}
}

// Close останавливает потребитель и освобождает ресурсы
func (c *Consumer) Close() error {
	return c.group.Close()
}

// consumerGroupHandler реализует интерфейс sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	handler control.Handler
}

// Setup вызывается, когда сессия получила партиции: канал готов
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.handler.OnConnect()
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			// имя события лежит в ключе сообщения
			h.handler.OnEvent(string(msg.Key), msg.Value)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}
