package wire

import "github.com/netobserve/linkwatch/snapshot"

// FromLinkSnapshot converts an in-process snapshot.Link into the wire
// LinkState shape. Only throughput and estimate fields cross the wire; the
// retransmission/lost-visibility roll-ups are local-inspection only.
func FromLinkSnapshot(l snapshot.Link) LinkState {
	ls := LinkState{
		SenderIP:          l.Key.A,
		ReceiverIP:        l.Key.B,
		ThroughputInKbps:  l.ThroughputInKbps,
		ThroughputOutKbps: l.ThroughputOutKbps,
	}
	if l.HasBandwidthEstimate {
		ls.HasBandwidth = true
		ls.BandwidthBPS = l.BandwidthBitsPerSec
	}
	if l.HasAvailableBandwidth {
		ls.HasAvailableBandwidth = true
		ls.AvailableBandwidthBPS = l.AvailableBandwidthBPS
	}
	if l.HasLatency {
		ls.HasLatency = true
		ls.LatencySec = l.LatencyAvg.Seconds()
	}
	if l.HasJitter {
		ls.HasJitter = true
		ls.JitterSec = l.Jitter.Seconds()
	}
	if l.HasLoss {
		ls.HasLoss = true
		ls.Loss = l.Loss
	}
	return ls
}
