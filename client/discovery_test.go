package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echonet-core/lite"
	"echonet-core/node"
)

func TestAnnounceBroadcastsSelfInstanceListAndUpdatesOwnRecord(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	lighting := node.NewDetailedObject(lightingEOJ(1), testRegistry().FindClass(0x02, 0x91))
	controller := newTestClient(transA, lighting)
	_ = newTestClient(transB)

	var gotSrc node.Address
	var gotFrame *lite.Frame
	received := make(chan struct{})
	transB.OnReceive(func(ctx context.Context, src node.Address, payload []byte) {
		f, err := lite.Decode(payload)
		if !assert.NoError(t, err, "decode announced frame") {
			return
		}
		gotSrc, gotFrame = src, f
		close(received)
	})

	require.NoError(t, controller.Announce(context.Background()))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("device never received the announce INF")
	}

	assert.Equal(t, node.Address("controller"), gotSrc)
	assert.Equal(t, lite.ESVINF, gotFrame.Format1.ESV)

	op, ok := gotFrame.Format1.OpList.FindEPC(0xD5)
	require.True(t, ok, "announce frame missing EPC 0xD5")
	list, err := lite.DecodeInstanceList(op.EDT)
	require.NoError(t, err)
	require.Len(t, list, 2, "announced instance list should name node profile + lighting")

	np, ok := controller.Self().NodeProfile().Property(0xD5)
	require.True(t, ok, "self node-profile has no EPC 0xD5 property")
	selfEDT, _ := np.Value()
	selfList, err := lite.DecodeInstanceList(selfEDT)
	require.NoError(t, err)
	assert.Len(t, selfList, 2, "self node-profile's own instance list")
}

func TestDiscoverCompletesAsSoonAsObserverSignals(t *testing.T) {
	transA, _ := newFakeTransportPair("controller", "device")
	controller := newTestClientWithTimeout(transA, emptyLookup{}, time.Second)

	observer := &DiscoveryObserver{
		OnInstanceListUpdated: func(addr node.Address, list lite.InstanceList) bool {
			return addr == "device"
		},
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- controller.Discover(ctx, observer)
	}()

	instanceList, err := lite.InstanceList{lightingEOJ(1)}.EncodeAnnounce()
	require.NoError(t, err)
	deviceNP := lite.MakeEOJ(lite.NodeProfileClassCode, 1)
	frame, err := lite.NewFormat1Frame(1, deviceNP, deviceNP, lite.ESVINF,
		lite.OperationList{{EPC: 0xD5, EDT: instanceList}}, nil)
	require.NoError(t, err)
	payload, err := frame.Encode()
	require.NoError(t, err)

	// Give Discover a moment to register its session before delivering
	// the notification it's supposed to observe.
	time.Sleep(10 * time.Millisecond)
	controller.onReceive(context.Background(), "device", payload)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Discover did not complete after its observer signalled completion")
	}
}

// TestPropertyMapAcquisitionIsolatesFailurePerObject verifies that one
// object's acquisition failing (because the remote has no object at that
// EOJ) doesn't prevent a sibling object named in the same instance list
// from acquiring successfully.
func TestPropertyMapAcquisitionIsolatesFailurePerObject(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	lighting := node.NewDetailedObject(lightingEOJ(1), testRegistry().FindClass(0x02, 0x91))
	controller := newTestClientWithTimeout(transA, emptyLookup{}, time.Second)
	// device only hosts lighting(1); lighting(2) is named in the
	// instance list below but doesn't actually exist on device.
	_ = newTestClient(transB, lighting)

	list := lite.InstanceList{lightingEOJ(1), lightingEOJ(2)}
	edt, err := list.EncodeAnnounce()
	require.NoError(t, err)
	deviceNP := lite.MakeEOJ(lite.NodeProfileClassCode, 1)
	frame, err := lite.NewFormat1Frame(1, deviceNP, deviceNP, lite.ESVINF,
		lite.OperationList{{EPC: 0xD5, EDT: edt}}, nil)
	require.NoError(t, err)
	payload, err := frame.Encode()
	require.NoError(t, err)

	controller.onReceive(context.Background(), "device", payload)

	deadline := time.After(2 * time.Second)
	for {
		obj, ok := controller.objectFor("device", lightingEOJ(1))
		if ok {
			if p, has := obj.Property(0xB0); has {
				if caps := p.Capabilities(); caps.CanGet && caps.CanSet {
					break
				}
			}
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for lighting(1)'s property-map acquisition")
		case <-time.After(10 * time.Millisecond):
		}
	}

	missing, ok := controller.objectFor("device", lightingEOJ(2))
	require.True(t, ok, "lighting(2) was never registered from the instance list")
	assert.Empty(t, missing.Properties(), "lighting(2)'s absent-on-device Get should have failed without side effects")
}

// TestRepeatedInstanceListNotificationSkipsAlreadyAcquiredPropertyMap
// covers real nodes' habit of re-announcing their instance list on
// power-on and periodically thereafter: a device whose property map was
// already acquired must not be re-queried just because its instance list
// arrived again.
func TestRepeatedInstanceListNotificationSkipsAlreadyAcquiredPropertyMap(t *testing.T) {
	transA, transB := newFakeTransportPair("controller", "device")

	lighting := node.NewDetailedObject(lightingEOJ(1), testRegistry().FindClass(0x02, 0x91))
	controller := newTestClientWithTimeout(transA, emptyLookup{}, time.Second)
	_ = newTestClient(transB, lighting)

	deviceHandler := transB.handler
	var getCount int
	var mu sync.Mutex
	transB.OnReceive(func(ctx context.Context, src node.Address, payload []byte) {
		if f, err := lite.Decode(payload); err == nil && f.Format1 != nil && f.Format1.ESV == lite.ESVGet {
			mu.Lock()
			getCount++
			mu.Unlock()
		}
		deviceHandler(ctx, src, payload)
	})

	list := lite.InstanceList{lightingEOJ(1)}
	edt, err := list.EncodeAnnounce()
	require.NoError(t, err)
	deviceNP := lite.MakeEOJ(lite.NodeProfileClassCode, 1)
	frame, err := lite.NewFormat1Frame(1, deviceNP, deviceNP, lite.ESVINF,
		lite.OperationList{{EPC: 0xD5, EDT: edt}}, nil)
	require.NoError(t, err)
	payload, err := frame.Encode()
	require.NoError(t, err)

	controller.onReceive(context.Background(), "device", payload)

	deadline := time.After(2 * time.Second)
	for {
		if obj, ok := controller.objectFor("device", lightingEOJ(1)); ok && obj.PropertyMapAcquired() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the first property-map acquisition")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	firstRoundGets := getCount
	mu.Unlock()
	require.Positive(t, firstRoundGets, "first instance-list notification should have issued at least one Get")

	// Re-deliver the same instance-list notification, as a real node
	// would on its own periodic re-announce.
	controller.onReceive(context.Background(), "device", payload)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, firstRoundGets, getCount, "a repeat instance-list notification re-issued a Get for an already-acquired device")
}
