package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/textutil"
)

// PubSubOpener publishes messages to a topic consumed by the WhatsApp relay.
type PubSubOpener struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

func NewPubSubOpener(topic *pubsub.Topic) (*PubSubOpener, error) {
	if topic == nil {
		return nil, errors.New("pubsub opener: topic is required")
	}
	return &PubSubOpener{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Open publishes msg and waits for the server acknowledgement.
func (o *PubSubOpener) Open(ctx context.Context, msg OutboundMessage) error {
	if o == nil || o.topic == nil {
		return errors.New("pubsub opener: not initialised")
	}

	data, err := o.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	result := o.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: textutil.NormalizeStringMap(map[string]string{
			"channel":     msg.Channel,
			"destination": msg.Destination,
			"orderCode":   msg.OrderCode,
			"dispatchId":  msg.DispatchID,
		}),
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish outbound message: %w", err)
	}
	return nil
}
