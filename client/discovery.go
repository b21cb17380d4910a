package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"echonet-core/lite"
	"echonet-core/node"
)

// DiscoveryObserver lets a caller of Discover watch the discovery
// sequence as it runs: every node's instance-list arrival and every
// object's property-map acquisition, whether that acquisition was
// started by this Discover call or by an unsolicited instance-list
// notification arriving while it runs. Each callback is optional; any
// callback that returns true completes the Discover call immediately.
type DiscoveryObserver struct {
	OnInstanceListUpdating       func() bool
	OnInstanceListUpdated        func(addr node.Address, list lite.InstanceList) bool
	OnPropertyMapAcquiring       func(addr node.Address, eoj lite.EOJ) bool
	OnDevicePropertyMapAcquiring func(addr node.Address, eoj lite.EOJ) bool
	OnDevicePropertyMapAcquired  func(addr node.Address, eoj lite.EOJ) bool
}

// discoverySession is one in-flight Discover call's observer plus the
// completion signal it drives.
type discoverySession struct {
	observer *DiscoveryObserver
	signal   func(complete bool)
}

func (c *Client) registerDiscoverySession(s *discoverySession) (unsubscribe func()) {
	c.discoveryMu.Lock()
	if c.discoverySessions == nil {
		c.discoverySessions = make(map[int]*discoverySession)
	}
	id := c.nextDiscoverySessionID
	c.nextDiscoverySessionID++
	c.discoverySessions[id] = s
	c.discoveryMu.Unlock()

	return func() {
		c.discoveryMu.Lock()
		delete(c.discoverySessions, id)
		c.discoveryMu.Unlock()
	}
}

func (c *Client) activeDiscoverySessions() []*discoverySession {
	c.discoveryMu.Lock()
	defer c.discoveryMu.Unlock()
	out := make([]*discoverySession, 0, len(c.discoverySessions))
	for _, s := range c.discoverySessions {
		out = append(out, s)
	}
	return out
}

func (c *Client) fireInstanceListUpdated(addr node.Address, list lite.InstanceList) {
	for _, s := range c.activeDiscoverySessions() {
		if s.observer.OnInstanceListUpdated != nil {
			s.signal(s.observer.OnInstanceListUpdated(addr, list))
		}
	}
}

func (c *Client) fireAcquiring(addr node.Address, eoj lite.EOJ) {
	for _, s := range c.activeDiscoverySessions() {
		if s.observer.OnPropertyMapAcquiring != nil {
			s.signal(s.observer.OnPropertyMapAcquiring(addr, eoj))
		}
		if s.observer.OnDevicePropertyMapAcquiring != nil {
			s.signal(s.observer.OnDevicePropertyMapAcquiring(addr, eoj))
		}
	}
}

func (c *Client) fireAcquired(addr node.Address, eoj lite.EOJ) {
	for _, s := range c.activeDiscoverySessions() {
		if s.observer.OnDevicePropertyMapAcquired != nil {
			s.signal(s.observer.OnDevicePropertyMapAcquired(addr, eoj))
		}
	}
}

// Announce fills the self node-profile's instance list (EPC 0xD5) with
// every hosted object and broadcasts it as an INF, the standard way a
// node tells the network its object set changed.
func (c *Client) Announce(ctx context.Context) error {
	np := c.self.NodeProfile()
	eojs := make([]lite.EOJ, 0, 1+len(c.self.Devices()))
	eojs = append(eojs, np.EOJ())
	for _, d := range c.self.Devices() {
		eojs = append(eojs, d.EOJ())
	}

	edt, err := lite.InstanceList(eojs).EncodeAnnounce()
	if err != nil {
		return err
	}
	if p, ok := np.Property(0xD5); ok {
		p.Set(edt, time.Now())
	}

	return c.INF(ctx, "", np.EOJ(), np.EOJ(), lite.OperationList{{EPC: 0xD5, EDT: edt}})
}

// RequestInstanceList broadcasts an INF_REQ for EPC 0xD5, asking every
// node on the network to announce its instance list.
func (c *Client) RequestInstanceList(ctx context.Context) error {
	np := c.self.NodeProfile()
	return c.INFREQ(ctx, "", np.EOJ(), np.EOJ(), []lite.EPC{0xD5})
}

// handleInstanceListNotification processes an inbound EPC 0xD5 payload.
// It registers every named device against the sending node, notifies
// any active Discover session, and starts that node's property-map
// acquisition — unconditionally, not only while a Discover call is in
// flight, since an unsolicited instance-list announcement is exactly as
// actionable as one solicited by RequestInstanceList.
func (c *Client) handleInstanceListNotification(ctx context.Context, src node.Address, edt []byte) {
	list, err := lite.DecodeInstanceList(edt)
	if err != nil {
		slog.Warn("malformed instance list notification", "src", src, "err", err)
		return
	}

	n := c.sourceNode(src)
	for _, eoj := range list {
		if eoj.IsNodeProfile() {
			continue
		}
		n.EnsureDevice(eoj, c.classSpecFor(eoj))
	}

	c.fireInstanceListUpdated(src, list)
	c.acquirePropertyMapsFor(ctx, src, list)
}

// Discover runs one round of the discovery sequence: it broadcasts an
// instance-list request and then waits, observing every instance-list
// arrival and property-map acquisition the core processes — including
// ones triggered by notifications from nodes other than the one this
// call solicited — until ctx is done or an observer callback signals
// completion.
func (c *Client) Discover(ctx context.Context, observer *DiscoveryObserver) error {
	if observer == nil {
		observer = &DiscoveryObserver{}
	}

	done := make(chan struct{})
	var closeOnce sync.Once
	signal := func(complete bool) {
		if complete {
			closeOnce.Do(func() { close(done) })
		}
	}

	unsubscribe := c.registerDiscoverySession(&discoverySession{observer: observer, signal: signal})
	defer unsubscribe()

	if observer.OnInstanceListUpdating != nil {
		signal(observer.OnInstanceListUpdating())
	}

	if err := c.RequestInstanceList(ctx); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquirePropertyMapsFor fetches property maps for every device in
// list concurrently, then for the sending node's node-profile object.
// A single object's timeout or SNA aborts only that object's
// acquisition, per the discovery sequence's own contract.
func (c *Client) acquirePropertyMapsFor(ctx context.Context, addr node.Address, list lite.InstanceList) {
	n, ok := c.registry.TryFind(addr)
	if !ok {
		return
	}

	deviceEOJs := make([]lite.EOJ, 0, len(list))
	for _, eoj := range list {
		if eoj.IsNodeProfile() {
			continue
		}
		n.EnsureDevice(eoj, c.classSpecFor(eoj))
		if c.propertyMapAlreadyAcquired(addr, eoj) {
			continue
		}
		deviceEOJs = append(deviceEOJs, eoj)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, eoj := range deviceEOJs {
		eoj := eoj
		g.Go(func() error {
			c.acquireOnePropertyMap(gctx, addr, eoj)
			return nil
		})
	}
	g.Wait()

	if npEOJ := n.NodeProfile().EOJ(); !c.propertyMapAlreadyAcquired(addr, npEOJ) {
		c.acquireOnePropertyMap(ctx, addr, npEOJ)
	}
}

// propertyMapAlreadyAcquired reports whether addr/eoj's property map is
// already known, so a repeat instance-list notification (nodes
// periodically re-announce on power-on and at their own cadence) doesn't
// re-issue a Get for a device already fully described.
func (c *Client) propertyMapAlreadyAcquired(addr node.Address, eoj lite.EOJ) bool {
	o, ok := c.objectFor(addr, eoj)
	return ok && o.PropertyMapAcquired()
}

func (c *Client) acquireOnePropertyMap(ctx context.Context, addr node.Address, eoj lite.EOJ) {
	c.fireAcquiring(addr, eoj)

	acqCtx, cancel := context.WithTimeout(ctx, c.propertyMapTimeout)
	defer cancel()

	if err := c.acquirePropertyMap(acqCtx, addr, eoj); err != nil {
		slog.Warn("property-map acquisition failed", "addr", addr, "eoj", eoj, "err", err)
		return
	}

	c.fireAcquired(addr, eoj)
}

// acquirePropertyMap reads EPCs 0x9D/0x9E/0x9F from addr/eoj in a single
// Get and merges the three decoded property maps into the object's
// capabilities.
func (c *Client) acquirePropertyMap(ctx context.Context, addr node.Address, eoj lite.EOJ) error {
	success, ops, err := c.Get(ctx, addr, c.self.NodeProfile().EOJ(), eoj, []lite.EPC{0x9D, 0x9E, 0x9F})
	if err != nil {
		return err
	}
	if !success {
		return ErrSNA
	}

	var announceEDT, setEDT, getEDT []byte
	for _, op := range ops {
		switch op.EPC {
		case 0x9D:
			announceEDT = op.EDT
		case 0x9E:
			setEDT = op.EDT
		case 0x9F:
			getEDT = op.EDT
		}
	}

	announce, err := lite.DecodePropertyMap(announceEDT)
	if err != nil {
		return ErrInvalidPropertyMap
	}
	setMap, err := lite.DecodePropertyMap(setEDT)
	if err != nil {
		return ErrInvalidPropertyMap
	}
	getMap, err := lite.DecodePropertyMap(getEDT)
	if err != nil {
		return ErrInvalidPropertyMap
	}

	o, ok := c.objectFor(addr, eoj)
	if !ok {
		return nil
	}
	o.ApplyPropertyMaps(announce, setMap, getMap)
	return nil
}

func (c *Client) objectFor(addr node.Address, eoj lite.EOJ) (*node.Object, bool) {
	n, ok := c.registry.TryFind(addr)
	if !ok {
		return nil, false
	}
	if eoj.IsNodeProfile() {
		return n.NodeProfile(), true
	}
	return n.Device(eoj)
}
