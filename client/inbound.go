package client

import (
	"context"
	"log/slog"
	"time"

	"echonet-core/lite"
	"echonet-core/node"
)

// dispatchInbound routes a decoded Format-1 request frame to its
// service handler. Response ESVs never reach here — onReceive routes
// those straight to the transaction tracker. Every valid frame
// registers its source node first, independent of which service it
// carries.
func (c *Client) dispatchInbound(ctx context.Context, src node.Address, f *lite.Frame) {
	c.sourceNode(src)

	switch f.Format1.ESV {
	case lite.ESVSetI:
		c.handleSetI(ctx, src, f)
	case lite.ESVSetC:
		c.handleSetC(ctx, src, f)
	case lite.ESVGet:
		c.handleGet(ctx, src, f)
	case lite.ESVSetGet:
		c.handleSetGet(ctx, src, f)
	case lite.ESVINF:
		c.handleINF(ctx, src, f)
	case lite.ESVINFC:
		c.handleINFC(ctx, src, f)
	case lite.ESVINFREQ:
		// The core does not itself source INF in answer to a request; an
		// application layered on top of it owns that decision. Ingest is
		// unnecessary since INF_REQ carries no EDT.
	default:
		slog.Warn("inbound frame with unrecognized request ESV", "esv", f.Format1.ESV, "src", src)
	}
}

// processSet applies a set-list against o, one operation at a time.
// Each rejected operation is echoed back unchanged, EDT included, so
// the caller can see exactly what failed; each accepted operation is
// written and echoed back with PDC==0.
func processSet(o *node.Object, ops lite.OperationList) (lite.OperationList, bool) {
	result := make(lite.OperationList, len(ops))
	allOK := true
	cs, hasClassSpec := o.ClassSpec()

	for i, op := range ops {
		p, ok := o.Property(op.EPC)
		accepted := ok
		if accepted {
			caps := p.Capabilities()
			accepted = caps.CanSet && caps.SizeInRange(len(op.EDT))
		}
		if accepted && hasClassSpec {
			if ps, ok2 := cs.Property(op.EPC); ok2 && ps.AcceptValue != nil {
				accepted = ps.AcceptValue(op.EDT)
			}
		}
		if !accepted {
			result[i] = op
			allOK = false
			continue
		}
		p.Set(op.EDT, time.Now())
		result[i] = lite.Operation{EPC: op.EPC}
	}
	return result, allOK
}

// processGet applies a get-list against o. A rejected operation is
// echoed back with no EDT (indistinguishable on the wire from a
// request, which is why Get_SNA vs Get_Res is what actually signals
// success to the caller); an accepted one carries the current value.
func processGet(o *node.Object, ops lite.OperationList) (lite.OperationList, bool) {
	result := make(lite.OperationList, len(ops))
	allOK := true

	for i, op := range ops {
		p, ok := o.Property(op.EPC)
		accepted := ok && len(op.EDT) == 0
		if accepted {
			accepted = p.Capabilities().CanGet
		}
		if !accepted {
			result[i] = lite.Operation{EPC: op.EPC}
			allOK = false
			continue
		}
		val, _ := p.Value()
		result[i] = lite.Operation{EPC: op.EPC, EDT: val}
	}
	return result, allOK
}

func (c *Client) handleSetI(ctx context.Context, src node.Address, f *lite.Frame) {
	o, ok := c.resolveDestination(f.Format1.DEOJ)
	if !ok {
		return
	}
	result, allOK := processSet(o, f.Format1.OpList)
	if !allOK {
		c.reply(ctx, src, f, lite.ESVSetISNA, result, nil)
	}
}

func (c *Client) handleSetC(ctx context.Context, src node.Address, f *lite.Frame) {
	o, ok := c.resolveDestination(f.Format1.DEOJ)
	if !ok {
		c.reply(ctx, src, f, lite.ESVSetCSNA, f.Format1.OpList, nil)
		return
	}
	result, allOK := processSet(o, f.Format1.OpList)
	esv := lite.ESVSetCSNA
	if allOK {
		esv = lite.ESVSetRes
	}
	c.reply(ctx, src, f, esv, result, nil)
}

func (c *Client) handleGet(ctx context.Context, src node.Address, f *lite.Frame) {
	o, ok := c.resolveDestination(f.Format1.DEOJ)
	if !ok {
		echoed := make(lite.OperationList, len(f.Format1.OpList))
		for i, op := range f.Format1.OpList {
			echoed[i] = lite.Operation{EPC: op.EPC}
		}
		c.reply(ctx, src, f, lite.ESVGetSNA, echoed, nil)
		return
	}
	result, allOK := processGet(o, f.Format1.OpList)
	esv := lite.ESVGetSNA
	if allOK {
		esv = lite.ESVGetRes
	}
	c.reply(ctx, src, f, esv, result, nil)
}

func (c *Client) handleSetGet(ctx context.Context, src node.Address, f *lite.Frame) {
	o, ok := c.resolveDestination(f.Format1.DEOJ)
	if !ok {
		setEchoed := f.Format1.OpList
		getEchoed := make(lite.OperationList, len(f.Format1.OpList2))
		for i, op := range f.Format1.OpList2 {
			getEchoed[i] = lite.Operation{EPC: op.EPC}
		}
		c.reply(ctx, src, f, lite.ESVSetGetSNA, setEchoed, getEchoed)
		return
	}
	setResult, setOK := processSet(o, f.Format1.OpList)
	getResult, getOK := processGet(o, f.Format1.OpList2)
	esv := lite.ESVSetGetSNA
	if setOK && getOK {
		esv = lite.ESVSetGetRes
	}
	c.reply(ctx, src, f, esv, setResult, getResult)
}

// ingestINF records the properties an INF or INFC carries into the
// local model of the node that sent it, creating the source object if
// it doesn't exist yet. Operations whose EDT size falls outside the
// property's known range are dropped rather than applied — a malformed
// announcement from a remote is not grounds for poisoning the cache.
func (c *Client) ingestINF(src node.Address, f *lite.Frame) *node.Object {
	n := c.sourceNode(src)
	seoj := f.Format1.SEOJ

	var o *node.Object
	if seoj.IsNodeProfile() {
		o = n.NodeProfile()
	} else {
		o, _ = n.EnsureDevice(seoj, c.classSpecFor(seoj))
	}

	now := time.Now()
	for _, op := range f.Format1.OpList {
		p, ok := o.Property(op.EPC)
		if !ok {
			p, _ = o.EnsureProperty(op.EPC, node.Capabilities{CanAnnounce: true})
		}
		if caps := p.Capabilities(); !caps.SizeInRange(len(op.EDT)) {
			continue
		}
		p.Set(op.EDT, now)
	}
	return o
}

func (c *Client) handleINF(ctx context.Context, src node.Address, f *lite.Frame) {
	c.ingestINF(src, f)

	if !f.Format1.SEOJ.IsNodeProfile() {
		return
	}
	op, ok := f.Format1.OpList.FindEPC(0xD5)
	if !ok {
		return
	}
	go c.handleInstanceListNotification(ctx, src, op.EDT)
}

func (c *Client) handleINFC(ctx context.Context, src node.Address, f *lite.Frame) {
	c.ingestINF(src, f)

	if _, ok := c.resolveDestination(f.Format1.DEOJ); !ok {
		return
	}
	ack := make(lite.OperationList, len(f.Format1.OpList))
	for i, op := range f.Format1.OpList {
		ack[i] = lite.Operation{EPC: op.EPC}
	}
	c.reply(ctx, src, f, lite.ESVINFCRes, ack, nil)
}

// reply encodes and sends a response to a request frame, with SEOJ and
// DEOJ swapped and the original TID carried through verbatim. Encode or
// send failures are logged, never propagated — the receive path is
// fire-and-forget.
func (c *Client) reply(ctx context.Context, dest node.Address, req *lite.Frame, esv lite.ESV, ops, ops2 lite.OperationList) {
	frame, err := lite.NewFormat1Frame(req.TID, req.Format1.DEOJ, req.Format1.SEOJ, esv, ops, ops2)
	if err != nil {
		slog.Error("failed to build reply frame", "esv", esv, "err", err)
		return
	}
	payload, err := frame.Encode()
	if err != nil {
		slog.Error("failed to encode reply frame", "esv", esv, "err", err)
		return
	}

	c.sendMu.Lock()
	err = c.transport.Send(ctx, dest, payload)
	c.sendMu.Unlock()
	if err != nil {
		slog.Error("failed to send reply frame", "esv", esv, "dest", dest, "err", err)
	}
}
