package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/control"
)

func TestProducer_SendUsesEventAsKey(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "release_signal" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "station-signals" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})

	p := newProducer(sp, "station-signals")
	require.NoError(t, p.Send("release_signal", []byte(`{"message":"RELEASE"}`)))
	require.NoError(t, p.Close())
}

func TestProducer_SendError(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(sp, "station-signals")
	err := p.Send("release_signal", nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestConsumerGroupHandler_DeliversEvents(t *testing.T) {
	type event struct {
		name    string
		payload string
	}
	var (
		events    []event
		connected bool
	)
	h := &consumerGroupHandler{handler: control.Handler{
		OnConnect: func() { connected = true },
		OnEvent: func(name string, payload []byte) {
			events = append(events, event{name: name, payload: string(payload)})
		},
	}}

	require.NoError(t, h.Setup(nil))
	require.True(t, connected)

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 2)}
	claim.ch <- &sarama.ConsumerMessage{Key: []byte("start_detection"), Value: []byte(`{"message":"START","data":"B-7"}`), Offset: 10}
	claim.ch <- &sarama.ConsumerMessage{Key: []byte("ping"), Value: []byte(`{}`), Offset: 11}
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, claim))

	require.Equal(t, []event{
		{name: "start_detection", payload: `{"message":"START","data":"B-7"}`},
		{name: "ping", payload: `{}`},
	}, events)
	require.Equal(t, []int64{10, 11}, sess.marked)
}

func TestTransport_PublishBeforeConnect(t *testing.T) {
	tr := New(Config{Brokers: []string{"localhost:9092"}})
	require.ErrorIs(t, tr.Publish("release_signal", nil), control.ErrNotConnected)
}

func TestTransport_ConnectWithoutBrokers(t *testing.T) {
	tr := New(Config{})
	require.Error(t, tr.Connect(control.Handler{}))
}
