package mqtt

import "context"

type noopPubSub struct{}

// NewNoop returns a PubSub that drops every message. It stands in when no
// broker is configured.
func NewNoop() PubSub {
	return noopPubSub{}
}

func (noopPubSub) Publish(context.Context, string, any) error { return nil }

func (noopPubSub) Subscribe(context.Context, string, Handler) error { return nil }

func (noopPubSub) Unsubscribe(context.Context, string) error { return nil }

func (noopPubSub) Disconnect(context.Context) error { return nil }
