package reconstruct

import (
	"time"

	"github.com/netobserve/linkwatch/observation"
)

// StreamKey identifies one stream within a link: the protocol plus the
// unordered port pair, so both directions of a connection fold onto one key.
type StreamKey struct {
	Protocol observation.Protocol
	PortLo   uint16
	PortHi   uint16
}

// NewStreamKey folds both directions of a flow onto one key.
func NewStreamKey(t observation.Transport) StreamKey {
	lo, hi := t.SrcPort, t.DstPort
	if lo > hi {
		lo, hi = hi, lo
	}
	return StreamKey{Protocol: t.Protocol, PortLo: lo, PortHi: hi}
}

// ConnState is the TCP reconstructor's inferred connection state.
type ConnState int

const (
	ConnUnknown ConnState = iota
	ConnEstablished
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnEstablished:
		return "established"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Snapshot is the variant-specific measurement set a reconstructor exports
// at tick time.
type Snapshot struct {
	Protocol observation.Protocol

	BytesOut uint64
	BytesIn  uint64

	// TCP-only.
	SmoothedRTT          time.Duration
	HasSmoothedRTT       bool
	Elevated             bool
	RetransmissionsOut   int
	RetransmissionsIn    int
	ConnState            ConnState
	AvailableBWBitsPerS  float64
	HasAvailableBW       bool
	LostVisibilityBytes  uint64
}

// Reconstructor is the uniform interface over the TCP/UDP/Other variants.
type Reconstructor interface {
	Register(obs *observation.Observation, now time.Time)
	Snapshot() Snapshot
	LastActivity() time.Time
}
