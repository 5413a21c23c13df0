// Package bandwidth implements a passive probe-gap available-bandwidth
// estimator: a constrained linear regression over how inter-packet gaps
// change between send and ACK.
package bandwidth

import (
	"math"
	"sort"
	"time"
)

// DataPoint is one packet-pair sample: the gap between two sends, the gap
// between their ACKs, and the second packet's payload length.
type DataPoint struct {
	GapIn  time.Duration
	GapOut time.Duration
	Len    float64 // bytes
	At     time.Time
}

const epsilon = 1e-9

// Estimator is a per-TCP-stream sink for probe-gap data points. It is not
// safe for concurrent use; the fabric task that owns the stream also owns
// this estimator.
type Estimator struct {
	nearLinkCapacityBytesPerSec float64
	dps                         []DataPoint
}

// NewEstimator builds an estimator bounded by the configured near-link
// physical capacity (bytes/s), used both to filter implausible samples and
// to sanity-check the final estimate.
func NewEstimator(nearLinkCapacityBytesPerSec float64) *Estimator {
	return &Estimator{nearLinkCapacityBytesPerSec: nearLinkCapacityBytesPerSec}
}

// Push records one data point, as produced by the TCP reconstructor.
func (e *Estimator) Push(dp DataPoint) {
	e.dps = append(e.dps, dp)
}

// Len reports the number of data points currently buffered.
func (e *Estimator) Len() int {
	return len(e.dps)
}

// Estimate fits an ordinary-least-squares regression over the filtered
// data points and returns the available-bandwidth estimate in bits/s. The
// buffered points are always cleared after a call, whether or not a usable
// estimate was produced.
func (e *Estimator) Estimate() (bitsPerSec float64, ok bool) {
	defer func() { e.dps = nil }()

	if len(e.dps) == 0 {
		return 0, false
	}

	filtered := e.filter()
	if len(filtered) == 0 {
		return 0, false
	}

	a, b, ok := ordinaryLeastSquares(filtered)
	if !ok || math.Abs(a) <= epsilon {
		return 0, false
	}

	abwBytesPerSec := (1 - b) / a
	capacityBytesPerSec := e.nearLinkCapacityBytesPerSec / 8
	if abwBytesPerSec <= 0 || abwBytesPerSec >= capacityBytesPerSec {
		return 0, false
	}
	return abwBytesPerSec * 8, true
}

type filteredPoint struct {
	gin, gout, length float64
}

// filter keeps physically plausible points, isolates the low-gin regime
// where the bottleneck causes visible dispersion, and retains only the
// smallest 70% of what remains.
func (e *Estimator) filter() []filteredPoint {
	var candidates []filteredPoint
	for _, dp := range e.dps {
		gin := dp.GapIn.Seconds()
		gout := dp.GapOut.Seconds()
		if gin <= 0 {
			continue
		}
		if dp.Len <= 1000 {
			continue
		}
		if dp.Len/gin >= e.nearLinkCapacityBytesPerSec {
			continue
		}
		if gout > 0 && dp.Len/gout >= e.nearLinkCapacityBytesPerSec {
			continue
		}
		candidates = append(candidates, filteredPoint{gin: gin, gout: gout, length: dp.Len})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].gin < candidates[j].gin })

	n := int(math.Ceil(float64(len(candidates)) * 0.1))
	if n < 1 {
		n = 1
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	var sumGout float64
	for _, c := range candidates[:n] {
		sumGout += c.gout
	}
	gMaxIn := sumGout / float64(n)

	var narrowed []filteredPoint
	for _, c := range candidates {
		if c.gin < gMaxIn {
			narrowed = append(narrowed, c)
		}
	}
	if len(narrowed) == 0 {
		return nil
	}

	keep := int(math.Ceil(float64(len(narrowed)) * 0.7))
	if keep > len(narrowed) {
		keep = len(narrowed)
	}
	return narrowed[:keep]
}

// ordinaryLeastSquares fits y = a*x + b over x=L/g_in, y=g_out/g_in.
func ordinaryLeastSquares(points []filteredPoint) (a, b float64, ok bool) {
	var sumX, sumY, sumXY, sumX2 float64
	n := 0
	for _, p := range points {
		if p.gin <= 0 {
			continue
		}
		x := p.length / p.gin
		y := p.gout / p.gin
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	nf := float64(n)
	denominator := nf*sumX2 - sumX*sumX
	if math.Abs(denominator) < epsilon {
		return 0, 0, false
	}
	a = (nf*sumXY - sumX*sumY) / denominator
	b = (sumY - a*sumX) / nf
	return a, b, true
}
