// Package snapshot defines the per-link report emitted each tick.
package snapshot

import (
	"fmt"
	"net"
	"time"
)

// LinkKey is the unordered pair of IP addresses identifying a link. The
// lower-sorting address is always A.
type LinkKey struct {
	A, B string // net.IP.String() form, sorted so the pair is unordered
}

// NewLinkKey folds two addresses into their unordered key.
func NewLinkKey(x, y net.IP) LinkKey {
	xs, ys := x.String(), y.String()
	if xs > ys {
		xs, ys = ys, xs
	}
	return LinkKey{A: xs, B: ys}
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%s<->%s", k.A, k.B)
}

// Link is the per-link snapshot, including a per-link retransmission
// roll-up for local inspection (not part of the wire BandwidthMessage,
// which is scoped to throughput/estimates).
type Link struct {
	Key LinkKey
	At  time.Time

	ThroughputInKbps  float64
	ThroughputOutKbps float64

	HasBandwidthEstimate bool
	BandwidthBitsPerSec  float64

	HasAvailableBandwidth bool
	AvailableBandwidthBPS float64

	HasLatency bool
	LatencyAvg time.Duration // mean of all streams' smoothed RTTs on this link

	HasJitter bool
	Jitter    time.Duration

	HasLoss bool
	Loss    float64

	// Per-link retransmission roll-up, local-inspection only.
	RetransmissionsIn  int
	RetransmissionsOut int

	// LostVisibilityBytes is the sum of bytes evicted from bounded segment
	// maps across every stream on this link.
	LostVisibilityBytes uint64
}

func (l Link) String() string {
	return fmt.Sprintf(
		"%s at=%s thp_in=%.2fKbps thp_out=%.2fKbps bw=%v abw=%v latency=%v jitter=%v loss=%v rt_in=%d rt_out=%d",
		l.Key, l.At.Format(time.RFC3339Nano),
		l.ThroughputInKbps, l.ThroughputOutKbps,
		optionalFloat(l.HasBandwidthEstimate, l.BandwidthBitsPerSec),
		optionalFloat(l.HasAvailableBandwidth, l.AvailableBandwidthBPS),
		optionalDuration(l.HasLatency, l.LatencyAvg),
		optionalDuration(l.HasJitter, l.Jitter),
		optionalFloat(l.HasLoss, l.Loss),
		l.RetransmissionsIn, l.RetransmissionsOut,
	)
}

func optionalFloat(has bool, v float64) interface{} {
	if !has {
		return nil
	}
	return v
}

func optionalDuration(has bool, v time.Duration) interface{} {
	if !has {
		return nil
	}
	return v
}
