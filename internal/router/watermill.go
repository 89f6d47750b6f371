package router

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/proto"
)

// Watermill implements Router on watermill's in-process GoChannel pub/sub.
// Groups map one-to-one onto watermill topics.
type Watermill struct {
	pubsub *gochannel.GoChannel
	log    *zerolog.Logger
}

// NewWatermill builds an in-memory group router.
func NewWatermill(logger *zerolog.Logger) *Watermill {
	wmLogger := watermill.NewStdLogger(false, false)
	return &Watermill{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, wmLogger),
		log:    logger,
	}
}

// Join subscribes to a group. The returned leave function cancels the
// subscription; pending deliveries are dropped.
func (r *Watermill) Join(ctx context.Context, group string, deliver DeliverFunc) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := r.pubsub.Subscribe(subCtx, group)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", group, err)
	}

	go func() {
		for msg := range messages {
			deliver(msg.Payload)
			msg.Ack()
		}
		r.log.Debug().Str("group", group).Msg("group subscription ended")
	}()

	return cancel, nil
}

// Send multicasts an encoded event to the group's subscribers.
func (r *Watermill) Send(ctx context.Context, group string, ev proto.Event) error {
	payload, err := proto.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := r.pubsub.Publish(group, msg); err != nil {
		return fmt.Errorf("publish %s: %w", group, err)
	}
	return nil
}

// Close shuts down the pub/sub and ends every subscription.
func (r *Watermill) Close() error {
	return r.pubsub.Close()
}
