package link

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netobserve/linkwatch/observation"
	"github.com/netobserve/linkwatch/snapshot"
)

func testConfig() Config {
	return Config{StreamTimeout: 5 * time.Second, NearLinkCapacityBytesPerSec: 1e9}
}

func tcpObs(dir observation.Direction, srcIP, dstIP net.IP, flags observation.TCPFlags, seq, ack uint32, payload int, at time.Time) *observation.Observation {
	return &observation.Observation{
		SrcIP:       srcIP,
		DstIP:       dstIP,
		TotalLength: payload + 40,
		Timestamp:   at,
		Direction:   dir,
		Transport: observation.Transport{
			Protocol:       observation.ProtocolTCP,
			SrcPort:        51000,
			DstPort:        443,
			Sequence:       seq,
			Acknowledgment: ack,
			Flags:          flags,
			PayloadLength:  payload,
		},
	}
}

// An intercepted flow increments the link's byte counter but creates no
// reconstructor and leaves sequence state untouched.
func TestInterceptedFlowNeverCreatesReconstructor(t *testing.T) {
	f := New(testConfig())
	b := net.ParseIP("10.0.0.2")
	c := net.ParseIP("10.0.0.3")
	base := time.Unix(0, 0)

	obs := tcpObs(observation.DirectionIntercepted, b, c, observation.TCPFlags{ACK: true}, 1, 1, 100, base)
	f.Register(obs, base)

	key := snapshot.NewLinkKey(b, c)
	agg, ok := f.links[key]
	require.True(t, ok, "link must be created on first observation")
	assert.Equal(t, uint64(140), agg.interceptedBytes)
	assert.True(t, agg.empty(), "intercepted observations must never create a reconstructor")
}

// After a full timeout with no traffic, a tick removes the stream and then
// the link itself.
func TestAgingConvergesToEmptyFabric(t *testing.T) {
	f := New(testConfig())
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	base := time.Unix(0, 0)

	f.Register(tcpObs(observation.DirectionOutgoing, a, b, observation.TCPFlags{SYN: true}, 1, 0, 0, base), base)
	f.Register(tcpObs(observation.DirectionIncoming, a, b, observation.TCPFlags{SYN: true, ACK: true}, 1, 2, 0, base), base)

	key := snapshot.NewLinkKey(a, b)
	require.Contains(t, f.links, key)

	past := base.Add(f.cfg.StreamTimeout + time.Second)
	snaps := f.Tick(past, time.Second)

	require.Len(t, snaps, 1, "link is still reported once with zero throughput before it is removed")
	assert.Equal(t, float64(0), snaps[0].ThroughputInKbps)
	assert.NotContains(t, f.links, key, "empty, unimportant link is removed once its streams age out")

	// Repeated ticks with no traffic converge to the same (empty) state.
	more := f.Tick(past.Add(time.Second), time.Second)
	assert.Empty(t, more)
}

// A link marked important is kept after its streams age out, so it keeps
// recording zero-throughput intervals.
func TestImportantLinkSurvivesAging(t *testing.T) {
	f := New(testConfig())
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	base := time.Unix(0, 0)

	f.Register(tcpObs(observation.DirectionOutgoing, a, b, observation.TCPFlags{SYN: true}, 1, 0, 0, base), base)
	f.MarkImportant(b)

	past := base.Add(f.cfg.StreamTimeout + time.Second)
	f.Tick(past, time.Second)

	key := snapshot.NewLinkKey(a, b)
	assert.Contains(t, f.links, key, "important links survive emptiness")
}

// The SYN/SYN-ACK round trip measures a 50ms RTT and reports it as the
// link's latency.
func TestSYNACKHandshakeMeasuresRTT(t *testing.T) {
	f := New(testConfig())
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	base := time.Unix(0, 0)

	f.Register(tcpObs(observation.DirectionOutgoing, a, b, observation.TCPFlags{SYN: true}, 1000, 0, 0, base), base)
	at := base.Add(50 * time.Millisecond)
	f.Register(tcpObs(observation.DirectionIncoming, b, a, observation.TCPFlags{SYN: true, ACK: true}, 5000, 1001, 0, at), at)

	snaps := f.Tick(at, time.Second)
	require.Len(t, snaps, 1)
	require.True(t, snaps[0].HasLatency)
	assert.Equal(t, 50*time.Millisecond, snaps[0].LatencyAvg)
}

func TestTickIdempotentWithNoObservations(t *testing.T) {
	f := New(testConfig())
	a := net.ParseIP("10.0.0.1")
	b := net.ParseIP("10.0.0.2")
	base := time.Unix(0, 0)
	f.Register(tcpObs(observation.DirectionOutgoing, a, b, observation.TCPFlags{ACK: true}, 1, 1, 10, base), base)

	first := f.Tick(base.Add(time.Second), time.Second)
	second := f.Tick(base.Add(2*time.Second), time.Second)
	assert.Equal(t, len(first), len(second))
}
