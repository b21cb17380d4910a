package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echonet-core/lite"
	"echonet-core/node"
)

func TestINFWithNodeProfileInstanceListTriggersPropertyMapAcquisition(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	lighting := node.NewDetailedObject(lightingEOJ(1), testRegistry().FindClass(0x02, 0x91))
	if p, ok := lighting.Property(0xB0); ok {
		p.Set([]byte{0x30}, time.Now())
	}

	// controller carries no class knowledge of its own: the only way EPC
	// 0xB0's capabilities can end up set below is through a genuine
	// property-map acquisition round-trip against device. A generous
	// acquisition timeout keeps this independent of goroutine scheduling.
	controller := newTestClientWithTimeout(transA, emptyLookup{}, time.Second)
	_ = newTestClient(transB, lighting)

	instanceList, err := lite.InstanceList{lightingEOJ(1)}.EncodeAnnounce()
	require.NoError(t, err)

	deviceNP := lite.MakeEOJ(lite.NodeProfileClassCode, 1)
	frame, err := lite.NewFormat1Frame(1, deviceNP, deviceNP, lite.ESVINF,
		lite.OperationList{{EPC: 0xD5, EDT: instanceList}}, nil)
	require.NoError(t, err)
	payload, err := frame.Encode()
	require.NoError(t, err)

	controller.onReceive(context.Background(), "device", payload)

	deadline := time.After(2 * time.Second)
	for {
		if obj, ok := controller.objectFor("device", lightingEOJ(1)); ok {
			if p, has := obj.Property(0xB0); has {
				if caps := p.Capabilities(); caps.CanGet && caps.CanSet {
					return
				}
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for property-map acquisition to merge capabilities")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSetGetAssignsGetResultsToGetResponseList(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	hac := node.NewDetailedObject(hacEOJ(1), testRegistry().FindClass(0x01, 0x30))
	if p, ok := hac.Property(0xBA); ok {
		p.Set([]byte{0x41}, time.Now())
	}
	controller := newTestClient(transA)
	_ = newTestClient(transB, hac)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	success, setOps, getOps, err := controller.SetGet(ctx, "device", controller.Self().NodeProfile().EOJ(), hacEOJ(1),
		lite.OperationList{{EPC: 0xB0, EDT: []byte{0x30}}},
		[]lite.EPC{0xBA},
	)
	require.NoError(t, err)
	require.True(t, success, "SetGet reported failure: set=%+v get=%+v", setOps, getOps)
	if assert.Len(t, setOps, 1) {
		assert.Empty(t, setOps[0].EDT, "set-response entry should carry PDC==0")
	}
	if assert.Len(t, getOps, 1) {
		assert.Equal(t, "\x41", string(getOps[0].EDT))
	}
}

// TestSetIWithAbsentDestinationObjectIsSilentlyDropped covers the case
// the standard leaves genuinely ambiguous: the destination EOJ names no
// real object on device, so the write is dropped with no SetI_SNA at
// all — indistinguishable on the wire from ordinary success. SetI can
// only fall back to its timeout path here, optimistically reflecting the
// write into its own local model even though the device never actually
// applied it.
func TestSetIWithAbsentDestinationObjectIsSilentlyDropped(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	controller := newTestClient(transA)
	_ = newTestClient(transB)

	var replied bool
	transA.OnReceive(func(ctx context.Context, src node.Address, payload []byte) {
		replied = true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ops, err := controller.SetI(ctx, "device", controller.Self().NodeProfile().EOJ(), hacEOJ(5),
		lite.OperationList{{EPC: 0x80, EDT: []byte{0x30}}})
	require.Error(t, err, "want a timeout error")
	assert.Nil(t, ops, "SetI ops should be nil on the timeout path")
	assert.False(t, replied, "SetI to an absent destination object produced a reply")

	remoteObj, ok := controller.objectFor("device", hacEOJ(5))
	require.True(t, ok, "controller did not optimistically cache the destination object")
	_, ok = remoteObj.Property(0x80)
	assert.True(t, ok, "SetI did not optimistically reflect the write despite the absent destination")
}
