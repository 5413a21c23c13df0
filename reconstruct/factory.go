package reconstruct

import (
	"github.com/netobserve/linkwatch/bandwidth"
	"github.com/netobserve/linkwatch/observation"
)

// New builds the Reconstructor variant appropriate for protocol.
// nearLinkCapacityBytesPerSec feeds a fresh bandwidth.Estimator for TCP
// streams; it is unused for other protocols. ICMP and other IP protocols
// are byte-counted only, via the UDP reconstructor, whose burst/byte-count
// semantics apply uniformly to any non-TCP transport.
func New(protocol observation.Protocol, nearLinkCapacityBytesPerSec float64) Reconstructor {
	switch protocol {
	case observation.ProtocolTCP:
		return NewTCP(bandwidth.NewEstimator(nearLinkCapacityBytesPerSec))
	default:
		return NewUDP(protocol)
	}
}
