package lite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestInstanceListRoundTrip(t *testing.T) {
	mk := func(n int) InstanceList {
		l := make(InstanceList, n)
		for i := range l {
			l[i] = MakeEOJ(0x0130, byte(i+1))
		}
		return l
	}

	for _, n := range []int{0, 1, 16, 84} {
		l := mk(n)
		encoded, err := l.Encode()
		require.NoError(t, err, "n=%d", n)
		decoded, err := DecodeInstanceList(encoded)
		require.NoError(t, err, "n=%d", n)
		if diff := cmp.Diff(l, decoded); diff != "" {
			t.Errorf("n=%d round-trip mismatch (-want +got):\n%s", n, diff)
		}

		announce, err := l.EncodeAnnounce()
		require.NoError(t, err, "n=%d", n)
		require.Len(t, announce, InstanceListEDTSize, "n=%d", n)
		decodedAnnounce, err := DecodeInstanceList(announce)
		require.NoError(t, err, "n=%d", n)
		if diff := cmp.Diff(l, decodedAnnounce); diff != "" {
			t.Errorf("n=%d announce round-trip mismatch (-want +got):\n%s", n, diff)
		}
	}
}

func TestInstanceListRejectsOverflow(t *testing.T) {
	l := make(InstanceList, MaxInstanceListEntries+1)
	_, err := l.Encode()
	require.Error(t, err, "expected error for instance list exceeding 84 entries")
	_, err = l.EncodeAnnounce()
	require.Error(t, err, "expected error for instance list exceeding 84 entries")
}
