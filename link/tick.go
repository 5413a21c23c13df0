package link

import (
	"time"

	"github.com/netobserve/linkwatch/reconstruct"
	"github.com/netobserve/linkwatch/snapshot"
)

// Tick performs the per-tick work: age out stale streams, promote rolling
// byte counters into maxima, and compose one snapshot.Link per link still
// worth reporting. interval is the tick period, used to convert the rolling
// byte counters into a throughput rate.
//
// Aging is idempotent: calling Tick repeatedly with no intervening Register
// calls converges to an empty Fabric, because aged links are deleted once
// they are empty, not marked important, and carry no injected tool result;
// links that are important or hold a tool result stay in the Fabric.
func (f *Fabric) Tick(now time.Time, interval time.Duration) []snapshot.Link {
	var out []snapshot.Link

	for key, agg := range f.links {
		f.ageStreams(agg, now)

		out = append(out, f.composeSnapshot(key, agg, now, interval))

		agg.bytesInMax = maxU64(agg.bytesInMax, agg.bytesInRolling)
		agg.bytesOutMax = maxU64(agg.bytesOutMax, agg.bytesOutRolling)
		agg.bytesInRolling = 0
		agg.bytesOutRolling = 0

		// A link that just went quiet still reports this tick's (zero)
		// throughput; it disappears from the next tick onward unless the
		// operator marked it important.
		if agg.empty() && !f.isImportant(key) && !agg.hasExternalData() {
			delete(f.links, key)
		}
	}

	return out
}

func (f *Fabric) ageStreams(agg *aggregator, now time.Time) {
	for key, stream := range agg.streams {
		if now.Sub(stream.LastActivity()) > f.cfg.StreamTimeout {
			delete(agg.streams, key)
		}
	}
}

func (f *Fabric) composeSnapshot(key snapshot.LinkKey, agg *aggregator, now time.Time, interval time.Duration) snapshot.Link {
	seconds := interval.Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	link := snapshot.Link{
		Key:               key,
		At:                now,
		ThroughputInKbps:  float64(agg.bytesInRolling) * 8 / 1000 / seconds,
		ThroughputOutKbps: float64(agg.bytesOutRolling) * 8 / 1000 / seconds,
	}

	if agg.hasBandwidth {
		link.HasBandwidthEstimate = true
		link.BandwidthBitsPerSec = agg.bandwidthBPS
	}
	if agg.hasLoss {
		link.HasLoss = true
		link.Loss = agg.loss
	}

	var latencySum time.Duration
	var latencyCount int
	var maxAvailableBW float64
	var hasAvailableBW bool
	var elevatedStreams int

	for _, stream := range agg.streams {
		if tcp, ok := stream.(*reconstruct.TCP); ok {
			s := tcp.Snapshot()
			if s.HasSmoothedRTT {
				latencySum += s.SmoothedRTT
				latencyCount++
			}
			if s.Elevated {
				elevatedStreams++
			}
			if s.HasAvailableBW && (!hasAvailableBW || s.AvailableBWBitsPerS > maxAvailableBW) {
				maxAvailableBW = s.AvailableBWBitsPerS
				hasAvailableBW = true
			}
			link.RetransmissionsIn += s.RetransmissionsIn
			link.RetransmissionsOut += s.RetransmissionsOut
			link.LostVisibilityBytes += s.LostVisibilityBytes
		}
	}

	// The link's latency is the mean of every TCP stream's smoothed RTT,
	// not just the latest single one.
	if latencyCount > 0 {
		link.HasLatency = true
		link.LatencyAvg = latencySum / time.Duration(latencyCount)

		// Jitter signal: the mean latency scaled by the fraction of this
		// tick's RTT-measuring streams whose latest sample ran hot against
		// its own smoothed baseline.
		link.HasJitter = true
		link.Jitter = time.Duration(float64(link.LatencyAvg) * float64(elevatedStreams) / float64(latencyCount))
	} else if agg.hasLatency {
		link.HasLatency = true
		link.LatencyAvg = agg.latency
	}

	if hasAvailableBW {
		link.HasAvailableBandwidth = true
		link.AvailableBandwidthBPS = maxAvailableBW
	} else if agg.hasAvailableBW {
		link.HasAvailableBandwidth = true
		link.AvailableBandwidthBPS = agg.availableBWBPS
	}

	return link
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
