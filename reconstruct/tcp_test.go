package reconstruct

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netobserve/linkwatch/bandwidth"
	"github.com/netobserve/linkwatch/observation"
)

func tcpObs(dir observation.Direction, flags observation.TCPFlags, seq, ack uint32, payload int, at time.Time) *observation.Observation {
	return &observation.Observation{
		SrcIP:       net.ParseIP("10.0.0.1"),
		DstIP:       net.ParseIP("10.0.0.2"),
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

func TestTCPHandshakeProducesRTTSample(t *testing.T) {
	r := NewTCP(nil)
	base := time.Unix(0, 0)

	// We send SYN at t=0.
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{SYN: true}, 1000, 0, 0, base), base)
	require.Equal(t, 1, r.localSent.len())

	// Peer's SYN-ACK arrives 20ms later, acknowledging our SYN.
	synAckAt := base.Add(20 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{SYN: true, ACK: true}, 2000, 1001, 0, synAckAt), synAckAt)

	snap := r.Snapshot()
	require.True(t, snap.HasSmoothedRTT)
	assert.Equal(t, 20*time.Millisecond, snap.SmoothedRTT)
	assert.Equal(t, 0, r.localSent.len())
}

func TestTCPRetransmissionSuppressesRTTSample(t *testing.T) {
	r := NewTCP(nil)
	base := time.Unix(0, 0)

	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1000, 1, 10, base), base)
	// Retransmit the same segment 5ms later (same sequence number, no ack yet).
	retransmitAt := base.Add(5 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1000, 1, 10, retransmitAt), retransmitAt)

	ackAt := base.Add(50 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{ACK: true}, 1, 1010, 0, ackAt), ackAt)

	snap := r.Snapshot()
	assert.False(t, snap.HasSmoothedRTT, "a retransmitted segment must never yield an RTT sample")
	assert.Equal(t, 1, snap.RetransmissionsOut)
}

func TestTCPCumulativeACKCoversManySegments(t *testing.T) {
	r := NewTCP(nil)
	base := time.Unix(0, 0)

	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1000, 1, 100, base), base)
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1100, 1, 100, base.Add(time.Millisecond)), base.Add(time.Millisecond))
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1200, 1, 100, base.Add(2*time.Millisecond)), base.Add(2*time.Millisecond))
	require.Equal(t, 3, r.localSent.len())

	ackAt := base.Add(30 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{ACK: true}, 1, 1300, 0, ackAt), ackAt)

	assert.Equal(t, 0, r.localSent.len(), "one cumulative ACK must cover every outstanding segment it reaches")
}

func TestTCPOutgoingDataSegmentAcksPeerSegments(t *testing.T) {
	r := NewTCP(nil)
	base := time.Unix(0, 0)

	// Peer sends data; our next data segment piggybacks the ACK.
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{ACK: true}, 5000, 1, 100, base), base)
	require.Equal(t, 1, r.remoteSent.len())

	ackAt := base.Add(30 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1, 5100, 50, ackAt), ackAt)

	assert.Equal(t, 0, r.remoteSent.len(), "a data segment's piggybacked ACK must cover peer segments")
	snap := r.Snapshot()
	require.True(t, snap.HasSmoothedRTT)
	assert.Equal(t, 30*time.Millisecond, snap.SmoothedRTT)
}

func TestTCPEmitsProbeGapDataPoints(t *testing.T) {
	est := bandwidth.NewEstimator(1e9)
	r := NewTCP(est)
	base := time.Unix(0, 0)

	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 1000, 1, 1200, base), base)
	second := base.Add(10 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{ACK: true}, 2200, 1, 1200, second), second)

	firstAck := base.Add(50 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{ACK: true}, 1, 2200, 0, firstAck), firstAck)
	secondAck := base.Add(70 * time.Millisecond)
	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{ACK: true}, 1, 3400, 0, secondAck), secondAck)

	assert.Equal(t, 1, est.Len(), "consecutive acked segments yield one gap pair")
}

func TestTCPConnectionStateTransitions(t *testing.T) {
	r := NewTCP(nil)
	base := time.Unix(0, 0)

	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{SYN: true}, 1, 0, 0, base), base)
	assert.Equal(t, ConnUnknown, r.state)

	r.Register(tcpObs(observation.DirectionIncoming, observation.TCPFlags{SYN: true, ACK: true}, 1, 2, 0, base), base)
	assert.Equal(t, ConnEstablished, r.state)

	r.Register(tcpObs(observation.DirectionOutgoing, observation.TCPFlags{FIN: true, ACK: true}, 2, 2, 0, base), base)
	assert.Equal(t, ConnClosed, r.state)
}
