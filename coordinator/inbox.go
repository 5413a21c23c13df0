package coordinator

import (
	"context"
	"net"
	"time"

	"github.com/netobserve/linkwatch/link"
	"github.com/netobserve/linkwatch/snapshot"
)

// Command is the tagged union of everything the command inbox accepts:
// hello requests, VIP marking, and injected tool-probe results. The fabric
// task selects on the inbox channel alongside the frame channel and the
// tick.
type Command interface {
	apply(f *link.Fabric, peers PeerSender, now time.Time)
}

// Inbox is the bounded channel the command-producing tasks (probe runners,
// the peer hello server) deliver Commands through.
type Inbox chan Command

// NewInbox builds an inbox with the given buffer depth.
func NewInbox(depth int) Inbox {
	return make(Inbox, depth)
}

// HelloResult is delivered on a HelloCommand's reply channel: success, or
// a timeout after the standard request deadline.
type HelloResult struct {
	Success bool
	Err     error
}

// HelloCommand asks the agent to say hello to ip, marking it as a peer
// running the same agent on success.
type HelloCommand struct {
	IP      net.IP
	Message string
	Reply   chan<- HelloResult
}

func (c HelloCommand) apply(f *link.Fabric, peers PeerSender, now time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := peers.SendHello(ctx, c.IP, c.Message)
		result := HelloResult{Success: err == nil, Err: err}
		if err == nil {
			f.MarkImportant(c.IP)
		}
		if c.Reply != nil {
			c.Reply <- result
		}
	}()
}

// MarkImportantCommand adds an address to the VIP set. Subsequent
// hello-sweeps target only the VIP set.
type MarkImportantCommand struct {
	IP net.IP
}

func (c MarkImportantCommand) apply(f *link.Fabric, peers PeerSender, now time.Time) {
	f.MarkImportant(c.IP)
}

// ThroughputResultCommand injects an external iperf-like measurement
// result for a link.
type ThroughputResultCommand struct {
	A, B       net.IP
	BitsPerSec float64
}

func (c ThroughputResultCommand) apply(f *link.Fabric, peers PeerSender, now time.Time) {
	f.SetBandwidth(snapshot.NewLinkKey(c.A, c.B), c.BitsPerSec, now)
}

// PathloadResultCommand injects a parsed pathload probe result. Parsing
// the tool's own line format is the probe package's concern; by the time
// it reaches here it is already a loss fraction.
type PathloadResultCommand struct {
	A, B net.IP
	Loss float64
}

func (c PathloadResultCommand) apply(f *link.Fabric, peers PeerSender, now time.Time) {
	f.SetLoss(snapshot.NewLinkKey(c.A, c.B), c.Loss, now)
}

// ICMPResultCommand injects an external ICMP RTT probe result. A non-nil
// Err means the probe failed or timed out; no latency is recorded in that
// case.
type ICMPResultCommand struct {
	A, B net.IP
	RTT  time.Duration
	Err  error
}

func (c ICMPResultCommand) apply(f *link.Fabric, peers PeerSender, now time.Time) {
	if c.Err != nil {
		return
	}
	f.SetLatency(snapshot.NewLinkKey(c.A, c.B), c.RTT, now)
}

// Dispatch applies one Command to the fabric; it is the single call site
// the fabric task's select loop uses for its command-inbox case.
func Dispatch(f *link.Fabric, peers PeerSender, cmd Command, now time.Time) {
	cmd.apply(f, peers, now)
}
