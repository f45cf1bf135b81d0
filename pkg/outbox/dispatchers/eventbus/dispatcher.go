package eventbus

import (
	"context"

	"github.com/campusops/placement/pkg/eventbus"
	"github.com/campusops/placement/pkg/outbox"
)

type Dispatcher struct {
	bus eventbus.EventBusWithError
}

func New(bus eventbus.EventBusWithError) *Dispatcher {
	return &Dispatcher{
		bus: bus,
	}
}

// Dispatch forwards the message to the in-process bus. PublishE surfaces
// handler errors so the relay can retry delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	_ = ctx
	return d.bus.PublishE(&msg.Meta, msg.Meta.Topic, msg.Payload)
}
