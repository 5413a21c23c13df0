// Package faultlog rate-limits repeated per-observation error/warning
// logging so a noisy capture source cannot flood the log, and holds the
// process-wide drop counters those errors are absorbed into.
package faultlog

import (
	"sync"
	"time"

	"github.com/netobserve/linkwatch/printer"
)

// rateLimitWindow bounds how often the same context is allowed to log a
// fresh message; repeats within the window are counted and folded into the
// next report.
const rateLimitWindow = time.Minute

type record struct {
	count    int
	nextSend time.Time
}

var (
	mu      sync.Mutex
	records = map[string]*record{}
)

// Report logs a warning for inContext, rate-limited per context: at most one
// line per rateLimitWindow, with the suppressed count folded into the next
// line that does get emitted.
func Report(inContext string, err error) {
	mu.Lock()
	rec, ok := records[inContext]
	now := time.Now()
	if !ok {
		records[inContext] = &record{count: 0, nextSend: now.Add(rateLimitWindow)}
		mu.Unlock()
		printer.Warningf("%s: %v\n", inContext, err)
		return
	}
	if rec.nextSend.After(now) {
		rec.count++
		mu.Unlock()
		return
	}
	suppressed := rec.count
	rec.count = 0
	rec.nextSend = now.Add(rateLimitWindow)
	mu.Unlock()

	if suppressed > 0 {
		printer.Warningf("%s: %v (and %d more suppressed in the last %s)\n", inContext, err, suppressed, rateLimitWindow)
	} else {
		printer.Warningf("%s: %v\n", inContext, err)
	}
}

// Counters is a small set of atomic-increment drop/error counters shared
// across tasks.
type Counters struct {
	parserDrops       counter
	coordinatorDrops  counter
	snapshotsDropped  counter
	toolProbeFailures counter
}

// Global is the process-wide counter set.
var Global = &Counters{}

func (c *Counters) IncParserDrop()       { c.parserDrops.inc() }
func (c *Counters) IncCoordinatorDrop()  { c.coordinatorDrops.inc() }
func (c *Counters) IncSnapshotDropped()  { c.snapshotsDropped.inc() }
func (c *Counters) IncToolProbeFailure() { c.toolProbeFailures.inc() }

func (c *Counters) ParserDrops() uint64       { return c.parserDrops.load() }
func (c *Counters) CoordinatorDrops() uint64  { return c.coordinatorDrops.load() }
func (c *Counters) SnapshotsDropped() uint64  { return c.snapshotsDropped.load() }
func (c *Counters) ToolProbeFailures() uint64 { return c.toolProbeFailures.load() }
