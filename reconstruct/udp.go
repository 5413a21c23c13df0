package reconstruct

import (
	"time"

	"github.com/netobserve/linkwatch/observation"
)

// udpBurstGap is the inactivity gap after which a burst is considered
// closed and a fresh one starts.
const udpBurstGap = time.Second

// udpBurstLimit bounds how many observations a single burst window holds
// before it is force-flushed, keeping per-stream memory bounded the same
// way the TCP segment map does.
const udpBurstLimit = 100

// UDP implements Reconstructor for UDP, ICMP, and any other non-TCP IP
// protocol. These carry no sequence/ack space, so the only tracked state is
// per-direction byte counters and a rolling burst window used to detect
// activity gaps.
type UDP struct {
	protocol observation.Protocol

	bytesOut, bytesIn uint64

	burstStart time.Time
	burstCount int

	lastActivity time.Time
}

// NewUDP constructs a reconstructor for the given non-TCP protocol.
func NewUDP(protocol observation.Protocol) *UDP {
	return &UDP{protocol: protocol}
}

func (u *UDP) LastActivity() time.Time { return u.lastActivity }

// Register records one observation's byte count and rolls the burst window
// forward. A new burst begins whenever the gap since the last observation
// exceeds udpBurstGap, or the current burst has reached udpBurstLimit
// observations. Only the current burst's start time and observation count
// are kept: a closed burst is neither stored nor emitted.
func (u *UDP) Register(obs *observation.Observation, now time.Time) {
	if u.lastActivity.IsZero() || obs.Timestamp.Sub(u.lastActivity) > udpBurstGap || u.burstCount >= udpBurstLimit {
		u.burstStart = obs.Timestamp
		u.burstCount = 0
	}
	u.burstCount++
	u.lastActivity = obs.Timestamp

	switch obs.Direction {
	case observation.DirectionOutgoing:
		u.bytesOut += uint64(obs.TotalLength)
	case observation.DirectionIncoming:
		u.bytesIn += uint64(obs.TotalLength)
	}
}

// Snapshot exports the per-tick measurements for a UDP flow.
func (u *UDP) Snapshot() Snapshot {
	return Snapshot{
		Protocol: u.protocol,
		BytesOut: u.bytesOut,
		BytesIn:  u.bytesIn,
	}
}
