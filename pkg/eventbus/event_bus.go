// Package eventbus publishes run events for live consumers (UIs, report
// sinks) over a watermill publisher/subscriber pair.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/booksweep/booksweep/pkg/events"
)

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event events.Event) error

// EventBus is the thin pub/sub contract the recorder and any live consumer
// share. Publishing is best-effort from the caller's point of view: the
// engine must tolerate bus failures.
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
}

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) Publish(_ context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, err := decode(eventType, msg.Payload)
			if err != nil {
				msg.Ack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

func decode(eventType events.EventType, payload []byte) (events.Event, error) {
	var event events.Event

	switch eventType {
	case events.WorkflowStartEvent:
		event = &events.WorkflowStart{}
	case events.WorkflowEndEvent:
		event = &events.WorkflowEnd{}
	case events.StepEvent:
		event = &events.StepFinished{}
	case events.FilterEvent:
		event = &events.FilterSelected{}
	case events.NavigationEvent:
		event = &events.Navigation{}
	case events.DownloadEvent:
		event = &events.Downloaded{}
	case events.SkipEvent:
		event = &events.Skipped{}
	case events.ValidationEvent:
		event = &events.Validation{}
	case events.ErrorEvent:
		event = &events.StepErrored{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return dereference(event), nil
}

// dereference unwraps the pointer types allocated in decode so handlers
// receive the value shapes the recorder published.
func dereference(event events.Event) events.Event {
	switch e := event.(type) {
	case *events.WorkflowStart:
		return *e
	case *events.WorkflowEnd:
		return *e
	case *events.StepFinished:
		return *e
	case *events.FilterSelected:
		return *e
	case *events.Navigation:
		return *e
	case *events.Downloaded:
		return *e
	case *events.Skipped:
		return *e
	case *events.Validation:
		return *e
	case *events.StepErrored:
		return *e
	default:
		return event
	}
}
