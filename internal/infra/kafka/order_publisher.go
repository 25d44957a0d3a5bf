package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"minishop/internal/domain/event"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messagePublisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// OrderEventPublisher は注文確定イベントを封筒に入れて送る。
// keyは注文ID（同じ注文のイベントは同じパーティション）。
type OrderEventPublisher struct {
	p        messagePublisher
	producer string
}

func NewOrderEventPublisher(p messagePublisher, producer string) *OrderEventPublisher {
	return &OrderEventPublisher{p: p, producer: producer}
}

func (o *OrderEventPublisher) PublishOrderPlaced(ctx context.Context, e event.OrderPlaced) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	orderID := strconv.FormatInt(e.OrderID, 10)
	env := event.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.TypeOrderPlaced,
		EventVersion:  1,
		OccurredAt:    e.PlacedAt,
		Producer:      o.producer,
		CorrelationID: orderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return o.p.Publish(ctx, []byte(orderID), value,
		kafka.Header{Key: "event_type", Value: []byte(event.TypeOrderPlaced)},
		kafka.Header{Key: "event_id", Value: []byte(env.EventID)},
	)
}
