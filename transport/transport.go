// Package transport defines the datagram abstraction the core runs on
// top of, plus a concrete UDP implementation.
package transport

import (
	"context"

	"echonet-core/node"
)

// Transport is the datagram handler the core consumes. Send delivers a
// single complete datagram to dest, or broadcasts it when dest is the
// zero Address. OnReceive registers the core's single callback, invoked
// once per inbound datagram with its source address; fragmentation and
// reassembly, if any, are the transport's responsibility.
type Transport interface {
	Send(ctx context.Context, dest node.Address, payload []byte) error
	OnReceive(handler func(ctx context.Context, src node.Address, payload []byte))
	Close() error
}
