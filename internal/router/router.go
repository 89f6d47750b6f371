package router

import (
	"context"

	"github.com/vovakirdan/privchat-server/internal/proto"
)

// DeliverFunc receives the encoded frame for one joined group. It must not
// block; slow consumers are the subscriber's problem, not the publisher's.
type DeliverFunc func(payload []byte)

// Router is the group multicast primitive. Each connection joins its
// personal group (named by its stringified user id); dialog broadcasts fan
// out to the personal groups of the dialog's members.
//
// Send is fire-and-forget: callers do not wait for delivery and do not roll
// back on delivery failure.
type Router interface {
	// Join subscribes to a group and returns a leave function.
	Join(ctx context.Context, group string, deliver DeliverFunc) (leave func(), err error)

	// Send multicasts an event to every current subscriber of the group.
	Send(ctx context.Context, group string, ev proto.Event) error
}
