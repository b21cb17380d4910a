package client

import (
	"context"
	"fmt"
	"time"

	"echonet-core/lite"
	"echonet-core/node"
)

// cachedObject finds or creates the local model of a remote object at
// dest/deoj, so an outbound call's effects can be reflected into it
// without waiting for a subsequent Get.
func (c *Client) cachedObject(dest node.Address, deoj lite.EOJ) *node.Object {
	n := c.sourceNode(dest)
	if deoj.IsNodeProfile() {
		return n.NodeProfile()
	}
	o, _ := n.EnsureDevice(deoj, c.classSpecFor(deoj))
	return o
}

// reflectWrites applies every op whose PDC the standard says marks a
// successful write (PDC==0x00 in the echoed response, meaning "no EDT,
// the write stands as sent") to the local model of the destination
// object, using the EDT the request itself carried.
func reflectWrites(o *node.Object, sent, echoed lite.OperationList, now time.Time) {
	for i, e := range echoed {
		if len(e.EDT) != 0 {
			continue
		}
		if i >= len(sent) {
			continue
		}
		p, ok := o.Property(sent[i].EPC)
		if !ok {
			p, _ = o.EnsureProperty(sent[i].EPC, node.Capabilities{CanSet: true})
		}
		p.Set(sent[i].EDT, now)
	}
}

// reflectReads applies every op that came back with a non-empty EDT to
// the local model of the source object.
func reflectReads(o *node.Object, got lite.OperationList, now time.Time) {
	for _, op := range got {
		if len(op.EDT) == 0 {
			continue
		}
		p, ok := o.Property(op.EPC)
		if !ok {
			p, _ = o.EnsureProperty(op.EPC, node.Capabilities{CanGet: true})
		}
		p.Set(op.EDT, now)
	}
}

// SetI issues a write that draws no response on success — only a
// SetI_SNA arrives, and only on failure. It registers that filter before
// sending and awaits it like any other transaction:
//   - a genuine SetI_SNA is applied per operation (PDC==0 marks an
//     accepted write, reflected to the local cache; other operations are
//     left untouched) and its operation list is returned.
//   - if ctx is cancelled or times out before any reply arrives — the
//     ordinary outcome when the write actually succeeds, since SetI has
//     no positive response to wait for — every sent write is
//     optimistically reflected (the device may well have accepted them)
//     and the cancellation or timeout is propagated rather than
//     swallowed, per the service's optimistic-success rule.
func (c *Client) SetI(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, ops lite.OperationList) (lite.OperationList, error) {
	p, err := c.registerAndSend(ctx, dest, seoj, deoj, lite.ESVSetI, ops, nil)
	if err != nil {
		return nil, err
	}

	o := c.cachedObject(dest, deoj)
	now := time.Now()

	_, frame, err := c.tracker.Await(ctx, p)
	if err != nil {
		for _, op := range ops {
			prop, ok := o.Property(op.EPC)
			if !ok {
				prop, _ = o.EnsureProperty(op.EPC, node.Capabilities{CanSet: true})
			}
			prop.Set(op.EDT, now)
		}
		return nil, err
	}

	echoed := frame.Format1.OpList
	reflectWrites(o, ops, echoed, now)
	return echoed, nil
}

// SetC issues a write and awaits Set_Res or SetC_SNA. It reports whether
// every operation succeeded and the echoed operation list (PDC==0 marks
// a successful write, a non-zero PDC echoes the rejected EDT back).
// Successful writes are reflected into the local model before returning.
func (c *Client) SetC(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, ops lite.OperationList) (bool, lite.OperationList, error) {
	p, err := c.registerAndSend(ctx, dest, seoj, deoj, lite.ESVSetC, ops, nil)
	if err != nil {
		return false, nil, err
	}
	_, frame, err := c.tracker.Await(ctx, p)
	if err != nil {
		return false, nil, err
	}
	echoed := frame.Format1.OpList
	success := frame.Format1.ESV == lite.ESVSetRes
	reflectWrites(c.cachedObject(dest, deoj), ops, echoed, time.Now())
	return success, echoed, nil
}

// Get reads the given EPCs from dest/deoj. It reports whether every
// property was readable and the returned operation list; successful
// reads replace the corresponding local cached values.
func (c *Client) Get(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, epcs []lite.EPC) (bool, lite.OperationList, error) {
	ops := make(lite.OperationList, len(epcs))
	for i, epc := range epcs {
		ops[i] = lite.Operation{EPC: epc}
	}
	p, err := c.registerAndSend(ctx, dest, seoj, deoj, lite.ESVGet, ops, nil)
	if err != nil {
		return false, nil, err
	}
	_, frame, err := c.tracker.Await(ctx, p)
	if err != nil {
		return false, nil, err
	}
	got := frame.Format1.OpList
	success := frame.Format1.ESV == lite.ESVGetRes
	reflectReads(c.cachedObject(dest, deoj), got, time.Now())
	return success, got, nil
}

// SetGet issues a combined write-then-read. It returns whether the call
// succeeded, the set-list's echo, and the get-list's results, applying
// the same local-model effects as SetC and Get respectively.
func (c *Client) SetGet(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, setOps lite.OperationList, getEPCs []lite.EPC) (bool, lite.OperationList, lite.OperationList, error) {
	getOps := make(lite.OperationList, len(getEPCs))
	for i, epc := range getEPCs {
		getOps[i] = lite.Operation{EPC: epc}
	}
	p, err := c.registerAndSend(ctx, dest, seoj, deoj, lite.ESVSetGet, setOps, getOps)
	if err != nil {
		return false, nil, nil, err
	}
	_, frame, err := c.tracker.Await(ctx, p)
	if err != nil {
		return false, nil, nil, err
	}
	success := frame.Format1.ESV == lite.ESVSetGetRes
	setEchoed := frame.Format1.OpList
	gotten := frame.Format1.OpList2
	o := c.cachedObject(dest, deoj)
	now := time.Now()
	reflectWrites(o, setOps, setEchoed, now)
	reflectReads(o, gotten, now)
	return success, setEchoed, gotten, nil
}

// INFREQ asks dest to notify the given EPCs. It is fire-and-forget: the
// call returns once the request is sent, and any INF that eventually
// arrives is ingested by the inbound engine like any other notification.
func (c *Client) INFREQ(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, epcs []lite.EPC) error {
	ops := make(lite.OperationList, len(epcs))
	for i, epc := range epcs {
		ops[i] = lite.Operation{EPC: epc}
	}
	_, err := c.send(ctx, dest, seoj, deoj, lite.ESVINFREQ, ops, nil)
	return err
}

// INF sends an unsolicited notification, typically a broadcast. No reply
// is expected and no filter is registered.
func (c *Client) INF(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, ops lite.OperationList) error {
	_, err := c.send(ctx, dest, seoj, deoj, lite.ESVINF, ops, nil)
	return err
}

// INFC sends a notification that demands an INFC_Res acknowledgement.
// dest must be a specific address: a notification with no addressable
// destination cannot be acknowledged.
func (c *Client) INFC(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, ops lite.OperationList) (lite.OperationList, error) {
	if dest == "" {
		return nil, fmt.Errorf("client: INFC requires a non-broadcast destination")
	}
	p, err := c.registerAndSend(ctx, dest, seoj, deoj, lite.ESVINFC, ops, nil)
	if err != nil {
		return nil, err
	}
	_, frame, err := c.tracker.Await(ctx, p)
	if err != nil {
		return nil, err
	}
	return frame.Format1.OpList, nil
}

// registerAndSend registers the transaction's response filter before
// sending, all under the send mutex, so a reply arriving the instant
// after the datagram leaves the wire is never missed. It returns the
// pending transaction for the caller to Await.
func (c *Client) registerAndSend(ctx context.Context, dest node.Address, seoj, deoj lite.EOJ, esv lite.ESV, ops, ops2 lite.OperationList) (*pendingTransaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	tid := c.tracker.NextTID()
	frame, err := lite.NewFormat1Frame(tid, seoj, deoj, esv, ops, ops2)
	if err != nil {
		return nil, err
	}
	payload, err := frame.Encode()
	if err != nil {
		return nil, err
	}

	p := c.tracker.Register(tid, dest, deoj, esv.ResponseESVs())

	if err := c.transport.Send(ctx, dest, payload); err != nil {
		c.tracker.Cancel(tid)
		return nil, err
	}
	return p, nil
}
