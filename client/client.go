// Package client implements the stateful ECHONET Lite protocol engine:
// outbound service calls, inbound service dispatch, and the discovery
// sequence, all layered on the lite codec, the node object/property
// model, and a consumed Transport.
package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"echonet-core/lite"
	"echonet-core/lite/spec"
	"echonet-core/node"
	"echonet-core/transport"
)

// Client is the core: it owns the self-node, the registry of other
// nodes, and every pending transaction, and drives both the outbound
// and inbound service engines over a Transport.
type Client struct {
	transport transport.Transport
	specs     spec.Lookup
	self      *node.Node
	registry  *node.Registry
	tracker   *Tracker

	sendMu sync.Mutex

	propertyMapTimeout time.Duration

	discoveryMu            sync.Mutex
	discoverySessions      map[int]*discoverySession
	nextDiscoverySessionID int
}

// New builds a Client around the given transport and object-spec lookup,
// with self as the local node (see node.NewSelfNode). propertyMapTimeout
// is the per-object deadline the discovery sequence applies when reading
// EPCs 0x9D/0x9E/0x9F (20s by default, per the core's recognized config).
func New(t transport.Transport, specs spec.Lookup, self *node.Node, propertyMapTimeout time.Duration) *Client {
	c := &Client{
		transport:          t,
		specs:              specs,
		self:               self,
		registry:           node.NewRegistry(),
		tracker:            NewTracker(),
		propertyMapTimeout: propertyMapTimeout,
	}
	t.OnReceive(c.onReceive)
	return c
}

// Self returns the client's local node.
func (c *Client) Self() *node.Node { return c.self }

// Registry returns the client's other-node registry.
func (c *Client) Registry() *node.Registry { return c.registry }

// send serializes frame construction and transmission behind the single
// send mutex: TID allocation happens while holding it, so two in-flight
// transactions never race for the same TID.
func (c *Client) send(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, esv lite.ESV, ops, ops2 lite.OperationList) (lite.TID, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	tid := c.tracker.NextTID()
	frame, err := lite.NewFormat1Frame(tid, seoj, deoj, esv, ops, ops2)
	if err != nil {
		return tid, err
	}
	payload, err := frame.Encode()
	if err != nil {
		return tid, err
	}
	if err := c.transport.Send(ctx, dest, payload); err != nil {
		return tid, err
	}
	return tid, nil
}

// resolveDestination finds the local object a DEOJ refers to: the
// self-node's node-profile object if the class matches, otherwise a
// lookup in the self-node's device objects. It returns false if neither
// matches — the standards-mandated "destination object absent" case.
func (c *Client) resolveDestination(deoj lite.EOJ) (*node.Object, bool) {
	if deoj.IsNodeProfile() {
		return c.self.NodeProfile(), true
	}
	return c.self.Device(deoj)
}

// sourceNode locates or creates the other-node for addr, emitting
// node_joined on first observation.
func (c *Client) sourceNode(addr node.Address) *node.Node {
	n, _ := c.registry.TryAdd(addr, node.NewOtherNode(addr))
	return n
}

// classSpecFor looks up the static spec for an EOJ's class.
func (c *Client) classSpecFor(eoj lite.EOJ) spec.ClassSpec {
	return c.specs.FindClass(eoj.ClassCode().ClassGroupCode(), eoj.ClassCode().Code())
}

func (c *Client) onReceive(ctx context.Context, src node.Address, payload []byte) {
	frame, err := lite.Decode(payload)
	if err != nil {
		// malformed frame: dropped silently at the receive boundary.
		return
	}
	if frame.Format1 == nil {
		return
	}

	esv := frame.Format1.ESV
	switch {
	case esv == lite.ESVINF:
		// INF can both answer a pending INF_REQ and carry an unsolicited
		// notification; the two are not mutually exclusive, so it always
		// reaches the inbound service engine regardless of whether a
		// pending transaction also consumes it.
		c.tracker.Dispatch(src, frame)
		c.dispatchInboundAsync(ctx, src, frame)
	case esv.IsSNA() || isPassThroughResponse(esv):
		c.tracker.Dispatch(src, frame)
	default:
		c.dispatchInboundAsync(ctx, src, frame)
	}
}

func (c *Client) dispatchInboundAsync(ctx context.Context, src node.Address, frame *lite.Frame) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in inbound service handler", "recover", r)
			}
		}()
		c.dispatchInbound(ctx, src, frame)
	}()
}

func isPassThroughResponse(esv lite.ESV) bool {
	switch esv {
	case lite.ESVSetRes, lite.ESVGetRes, lite.ESVINFCRes, lite.ESVSetGetRes:
		return true
	default:
		return false
	}
}
