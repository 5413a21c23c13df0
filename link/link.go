// Package link implements the link aggregator and stream registry: the
// top two tiers of the capture -> stream -> link state fabric, with
// bounded memory and periodic aging.
package link

import (
	"net"
	"sync"
	"time"

	"github.com/netobserve/linkwatch/observation"
	"github.com/netobserve/linkwatch/reconstruct"
	"github.com/netobserve/linkwatch/snapshot"
)

// Config gathers the fabric's tunables into one immutable record threaded
// at construction.
type Config struct {
	StreamTimeout               time.Duration
	NearLinkCapacityBytesPerSec float64
}

// aggregator is one link's state. All mutation happens on the single task
// that owns the Fabric, so no locking is needed here even though Fabric
// itself exposes a small locked surface for the command inbox and probe
// tasks.
type aggregator struct {
	streams map[reconstruct.StreamKey]reconstruct.Reconstructor

	bytesInRolling, bytesOutRolling uint64
	bytesInMax, bytesOutMax         uint64

	interceptedBytes uint64

	lastActivity time.Time

	// External probe results injected via the command inbox.
	hasBandwidth    bool
	bandwidthBPS    float64
	hasAvailableBW  bool
	availableBWBPS  float64
	hasLatency      bool
	latency         time.Duration
	hasLoss         bool
	loss            float64
	lastExternalAt  time.Time
}

func newAggregator() *aggregator {
	return &aggregator{streams: make(map[reconstruct.StreamKey]reconstruct.Reconstructor)}
}

func (a *aggregator) empty() bool {
	return len(a.streams) == 0
}

// hasExternalData reports whether an out-of-band tool result has been
// injected for this link; such a link is worth reporting even while it has
// no currently-tracked stream.
func (a *aggregator) hasExternalData() bool {
	return a.hasBandwidth || a.hasAvailableBW || a.hasLatency || a.hasLoss
}

// Fabric is the link-level state fabric: one Fabric per monitored
// interface, holding every link currently visible on that interface.
type Fabric struct {
	cfg Config

	mu    sync.Mutex // guards vip only; link state itself is single-task-owned
	links map[snapshot.LinkKey]*aggregator
	vip   map[string]bool

	droppedSnapshots uint64
}

// New builds an empty Fabric.
func New(cfg Config) *Fabric {
	return &Fabric{
		cfg:   cfg,
		links: make(map[snapshot.LinkKey]*aggregator),
		vip:   make(map[string]bool),
	}
}

// Register feeds one parsed observation into the fabric. Loopback pairs
// never create a link.
func (f *Fabric) Register(obs *observation.Observation, now time.Time) {
	if obs == nil || obs.SrcIP.IsLoopback() || obs.DstIP.IsLoopback() {
		return
	}

	key := snapshot.NewLinkKey(obs.SrcIP, obs.DstIP)
	agg, ok := f.links[key]
	if !ok {
		agg = newAggregator()
		f.links[key] = agg
	}
	agg.lastActivity = obs.Timestamp

	switch obs.Direction {
	case observation.DirectionIncoming:
		agg.bytesInRolling += uint64(obs.TotalLength)
	case observation.DirectionOutgoing:
		agg.bytesOutRolling += uint64(obs.TotalLength)
	case observation.DirectionIntercepted:
		// Intercepted traffic is counted separately and never reaches
		// sequence state.
		agg.interceptedBytes += uint64(obs.TotalLength)
		return
	}

	if obs.Intercepted() {
		return
	}

	streamKey := reconstruct.NewStreamKey(obs.Transport)
	stream, ok := agg.streams[streamKey]
	if !ok {
		stream = reconstruct.New(obs.Transport.Protocol, f.cfg.NearLinkCapacityBytesPerSec)
		agg.streams[streamKey] = stream
	}
	stream.Register(obs, now)
}

// MarkImportant adds ip to the VIP set. Once the set is non-empty,
// hello-sweeps target only it. Safe to call from any task; the fabric task
// consults the set at tick time.
func (f *Fabric) MarkImportant(ip net.IP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vip[ip.String()] = true
}

// isImportant reports whether either endpoint of key is in the VIP set.
func (f *Fabric) isImportant(key snapshot.LinkKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vip[key.A] || f.vip[key.B]
}

// VIPAddresses returns a snapshot of the VIP set for the hello-sweep.
func (f *Fabric) VIPAddresses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.vip))
	for ip := range f.vip {
		out = append(out, ip)
	}
	return out
}

// LinkAddresses returns the distinct addresses participating in any known
// link, for the "no VIPs yet" hello-sweep fallback. Must be called from
// the task that owns the fabric.
func (f *Fabric) LinkAddresses() []string {
	seen := map[string]bool{}
	for key := range f.links {
		seen[key.A] = true
		seen[key.B] = true
	}
	out := make([]string, 0, len(seen))
	for ip := range seen {
		out = append(out, ip)
	}
	return out
}

// SetBandwidth injects an external iperf-like measurement result.
func (f *Fabric) SetBandwidth(key snapshot.LinkKey, bitsPerSec float64, now time.Time) {
	agg := f.linkOrCreate(key)
	agg.hasBandwidth = true
	agg.bandwidthBPS = bitsPerSec
	agg.lastExternalAt = now
}

// SetLatency injects an external ICMP RTT measurement result.
func (f *Fabric) SetLatency(key snapshot.LinkKey, rtt time.Duration, now time.Time) {
	agg := f.linkOrCreate(key)
	agg.hasLatency = true
	agg.latency = rtt
	agg.lastExternalAt = now
}

// SetLoss injects an external loss measurement (e.g. derived from pathload
// output).
func (f *Fabric) SetLoss(key snapshot.LinkKey, loss float64, now time.Time) {
	agg := f.linkOrCreate(key)
	agg.hasLoss = true
	agg.loss = loss
	agg.lastExternalAt = now
}

func (f *Fabric) linkOrCreate(key snapshot.LinkKey) *aggregator {
	agg, ok := f.links[key]
	if !ok {
		agg = newAggregator()
		f.links[key] = agg
	}
	return agg
}

// DroppedSnapshots reports how many snapshots were dropped because the
// publisher channel was full. Publication never blocks capture: a full
// channel costs a snapshot, not a frame.
func (f *Fabric) DroppedSnapshots() uint64 {
	return f.droppedSnapshots
}

// IncrementDroppedSnapshots records one snapshot lost to a full publisher
// channel. Called from the task that owns the fabric.
func (f *Fabric) IncrementDroppedSnapshots() {
	f.droppedSnapshots++
}
