package coordinator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netobserve/linkwatch/link"
)

type fakePeerSender struct {
	err error
}

func (f fakePeerSender) SendHello(ctx context.Context, ip net.IP, message string) error {
	return f.err
}

func testFabric() *link.Fabric {
	return link.New(link.Config{StreamTimeout: 5 * time.Second, NearLinkCapacityBytesPerSec: 1e9})
}

func TestHelloCommandMarksImportantOnSuccess(t *testing.T) {
	f := testFabric()
	reply := make(chan HelloResult, 1)
	ip := net.ParseIP("10.0.0.9")

	Dispatch(f, fakePeerSender{}, HelloCommand{IP: ip, Message: "hi", Reply: reply}, time.Now())

	select {
	case r := <-reply:
		assert.True(t, r.Success)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hello reply")
	}

	require.Contains(t, f.VIPAddresses(), ip.String())
}

func TestHelloCommandReportsFailure(t *testing.T) {
	f := testFabric()
	reply := make(chan HelloResult, 1)
	ip := net.ParseIP("10.0.0.9")
	sendErr := context.DeadlineExceeded

	Dispatch(f, fakePeerSender{err: sendErr}, HelloCommand{IP: ip, Message: "hi", Reply: reply}, time.Now())

	select {
	case r := <-reply:
		assert.False(t, r.Success)
		assert.Error(t, r.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hello reply")
	}
	assert.NotContains(t, f.VIPAddresses(), ip.String())
}

func TestMarkImportantCommand(t *testing.T) {
	f := testFabric()
	ip := net.ParseIP("10.0.0.5")
	Dispatch(f, fakePeerSender{}, MarkImportantCommand{IP: ip}, time.Now())
	assert.Contains(t, f.VIPAddresses(), ip.String())
}

func TestThroughputResultCommandInjectsBandwidth(t *testing.T) {
	f := testFabric()
	a, b := net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2")
	Dispatch(f, fakePeerSender{}, ThroughputResultCommand{A: a, B: b, BitsPerSec: 1e7}, time.Now())

	snaps := f.Tick(time.Now(), time.Second)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].HasBandwidthEstimate)
	assert.Equal(t, 1e7, snaps[0].BandwidthBitsPerSec)
}
