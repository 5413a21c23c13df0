package reconstruct

import (
	"time"

	"github.com/netobserve/linkwatch/bandwidth"
	"github.com/netobserve/linkwatch/observation"
)

// DefaultSegmentCapacity bounds how many unacknowledged segments are
// tracked per direction before the oldest is evicted.
const DefaultSegmentCapacity = 1024

// TCP implements Reconstructor for a single bidirectional TCP flow: it
// tracks unacknowledged segments in both directions, measures RTT from
// cumulative ACKs, counts retransmissions, and feeds packet-pair gaps to
// the available-bandwidth estimator.
type TCP struct {
	localSent  *segmentMap // segments this host sent
	remoteSent *segmentMap // segments the peer sent

	initialSeqLocal  *uint32
	initialSeqRemote *uint32

	rtt      smoothedRTT
	elevated bool // last RTT sample ran hot against the smoothed baseline
	state    ConnState

	bytesOut, bytesIn uint64

	estimator *bandwidth.Estimator

	// gap bookkeeping for the probe-gap side output, tracked independently
	// per acked direction.
	prevSentLocal, prevAckLocal   *time.Time
	prevSentRemote, prevAckRemote *time.Time

	lastActivity time.Time
}

// NewTCP constructs a TCP reconstructor backed by the given available-
// bandwidth estimator. The estimator is owned per stream and may be nil.
func NewTCP(estimator *bandwidth.Estimator) *TCP {
	return &TCP{
		localSent:  newSegmentMap(DefaultSegmentCapacity),
		remoteSent: newSegmentMap(DefaultSegmentCapacity),
		estimator:  estimator,
	}
}

func (t *TCP) LastActivity() time.Time { return t.lastActivity }

// Register feeds one observation into the reconstructor. Intercepted
// observations must never reach this method; the link aggregator enforces
// that before dispatch.
func (t *TCP) Register(obs *observation.Observation, now time.Time) {
	t.lastActivity = obs.Timestamp
	tr := obs.Transport

	switch obs.Direction {
	case observation.DirectionOutgoing:
		t.bytesOut += uint64(obs.TotalLength)
	case observation.DirectionIncoming:
		t.bytesIn += uint64(obs.TotalLength)
	}

	t.updateState(tr.Flags)

	if tr.IsPureACK() {
		switch obs.Direction {
		case observation.DirectionOutgoing:
			// Our ACK covers segments the peer sent.
			t.ackSweep(t.remoteSent, tr.Acknowledgment, obs.Timestamp, &t.prevSentRemote, &t.prevAckRemote)
		case observation.DirectionIncoming:
			// Peer's ACK covers segments we sent.
			t.ackSweep(t.localSent, tr.Acknowledgment, obs.Timestamp, &t.prevSentLocal, &t.prevAckLocal)
		}
		return
	}

	length := tr.SegmentLength()
	if length == 0 {
		return
	}

	// Any data segment may also carry a cumulative ACK; honor it the same
	// way a pure ACK would.
	switch obs.Direction {
	case observation.DirectionOutgoing:
		if t.initialSeqLocal == nil {
			seq := tr.Sequence
			t.initialSeqLocal = &seq
		}
		t.localSent.insert(tr.Sequence, length, obs.Timestamp)
		if tr.Flags.ACK {
			t.ackSweep(t.remoteSent, tr.Acknowledgment, obs.Timestamp, &t.prevSentRemote, &t.prevAckRemote)
		}
	case observation.DirectionIncoming:
		if t.initialSeqRemote == nil {
			seq := tr.Sequence
			t.initialSeqRemote = &seq
		}
		t.remoteSent.insert(tr.Sequence, length, obs.Timestamp)
		if tr.Flags.ACK {
			t.ackSweep(t.localSent, tr.Acknowledgment, obs.Timestamp, &t.prevSentLocal, &t.prevAckLocal)
		}
	}
}

func (t *TCP) updateState(flags observation.TCPFlags) {
	if flags.FIN || flags.RST {
		t.state = ConnClosed
		return
	}
	if t.state == ConnClosed {
		return
	}
	if flags.SYN && !flags.ACK {
		t.state = ConnUnknown
		return
	}
	t.state = ConnEstablished
}

// ackSweep walks the covered direction's segment map, feeds RTT samples
// (Karn's rule enforced by skipping retransmitted segments), and emits
// probe-gap data points for the estimator.
func (t *TCP) ackSweep(dir *segmentMap, ack uint32, at time.Time, prevSent, prevAck **time.Time) {
	covered := dir.ackSweep(ack)
	for i := range covered {
		seg := covered[i]
		if seg.retransmissions == 0 {
			sample := at.Sub(seg.sentAt)
			t.elevated = t.rtt.observe(sample).Elevated
		}

		if *prevSent != nil && *prevAck != nil {
			gapIn := seg.sentAt.Sub(**prevSent)
			gapOut := at.Sub(**prevAck)
			if gapIn > 0 && gapOut > 0 && t.estimator != nil {
				t.estimator.Push(bandwidth.DataPoint{
					GapIn:  gapIn,
					GapOut: gapOut,
					Len:    float64(seg.length),
					At:     at,
				})
			}
		}
		sentAt := seg.sentAt
		ackAt := at
		*prevSent = &sentAt
		*prevAck = &ackAt
	}
}

// Snapshot exports the per-tick measurements for this flow.
func (t *TCP) Snapshot() Snapshot {
	snap := Snapshot{
		Protocol:            observation.ProtocolTCP,
		BytesOut:            t.bytesOut,
		BytesIn:             t.bytesIn,
		RetransmissionsOut:  t.localSent.retransmitCount,
		RetransmissionsIn:   t.remoteSent.retransmitCount,
		ConnState:           t.state,
		LostVisibilityBytes: t.localSent.lostVisibilityBytes + t.remoteSent.lostVisibilityBytes,
	}
	if v, ok := t.rtt.current(); ok {
		snap.SmoothedRTT = v
		snap.HasSmoothedRTT = true
	}
	snap.Elevated = t.elevated
	t.elevated = false
	if t.estimator != nil {
		if bps, ok := t.estimator.Estimate(); ok {
			snap.AvailableBWBitsPerS = bps
			snap.HasAvailableBW = true
		}
	}
	return snap
}
