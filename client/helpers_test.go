package client

import (
	"context"
	"sync"
	"time"

	"echonet-core/lite"
	"echonet-core/lite/spec"
	"echonet-core/node"
	"echonet-core/transport"
)

// fakeTransport connects exactly two Clients in a test, delivering
// every Send on one side straight into the other's registered handler.
type fakeTransport struct {
	mu       sync.Mutex
	selfAddr node.Address
	peer     *fakeTransport
	handler  func(ctx context.Context, src node.Address, payload []byte)
}

func newFakeTransportPair(addrA, addrB node.Address) (*fakeTransport, *fakeTransport) {
	a := &fakeTransport{selfAddr: addrA}
	b := &fakeTransport{selfAddr: addrB}
	a.peer = b
	b.peer = a
	return a, b
}

func (t *fakeTransport) OnReceive(h func(ctx context.Context, src node.Address, payload []byte)) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *fakeTransport) Send(ctx context.Context, dest node.Address, payload []byte) error {
	t.peer.mu.Lock()
	h := t.peer.handler
	t.peer.mu.Unlock()
	if h != nil {
		h(ctx, t.selfAddr, payload)
	}
	return nil
}

func (t *fakeTransport) Close() error { return nil }

func testRegistry() *spec.Registry {
	return spec.NewDefaultRegistry()
}

func hacEOJ(instance byte) lite.EOJ {
	return lite.MakeEOJ(lite.MakeClassCode(0x01, 0x30), instance)
}

func lightingEOJ(instance byte) lite.EOJ {
	return lite.MakeEOJ(lite.MakeClassCode(0x02, 0x91), instance)
}

func newTestClient(t transport.Transport, devices ...*node.Object) *Client {
	r := testRegistry()
	npSpec := r.FindClass(0x0E, 0xF0)
	self := node.NewSelfNode(0x01, npSpec, devices...)
	return New(t, r, self, 50*time.Millisecond)
}

// emptyLookup describes no classes at all: every EnsureDevice call against
// it produces an undetailed object, so a test using it can only gain
// capabilities through property-map acquisition, never through class-spec
// knowledge baked in at construction time.
type emptyLookup struct{}

func (emptyLookup) FindClass(classGroup, class byte) spec.ClassSpec {
	return spec.NewClassSpec(classGroup, class, "")
}

func newTestClientWithTimeout(t transport.Transport, lookup spec.Lookup, propertyMapTimeout time.Duration, devices ...*node.Object) *Client {
	self := node.NewSelfNode(0x01, lookup.FindClass(0x0E, 0xF0), devices...)
	return New(t, lookup, self, propertyMapTimeout)
}
