package control

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
)

var ErrMalformed = errors.New("malformed control message")

// ParseTrigger разбирает тело start_detection.
// Нужны строковые message == "START" и непустой data.
func ParseTrigger(payload []byte) (models.TriggerEvent, error) {
	var msg models.ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.TriggerEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case msg.Message == nil:
		return models.TriggerEvent{}, fmt.Errorf("%w: message field is missing", ErrMalformed)
	case *msg.Message != models.MessageStart:
		return models.TriggerEvent{}, fmt.Errorf("%w: message is %q, not %s", ErrMalformed, *msg.Message, models.MessageStart)
	case msg.Data == nil:
		return models.TriggerEvent{}, fmt.Errorf("%w: data field is missing", ErrMalformed)
	case *msg.Data == "":
		// без номера платы вердикт некуда привязать
		return models.TriggerEvent{}, fmt.Errorf("%w: data is empty", ErrMalformed)
	}

	return models.TriggerEvent{
		BoardID:    *msg.Data,
		RawMessage: string(payload),
	}, nil
}
