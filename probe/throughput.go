package probe

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/coordinator"
)

// ThroughputConfig names the external iperf-like binary and its target.
type ThroughputConfig struct {
	BinPath string
	Args    []string
	Self    net.IP
	Target  net.IP
}

// RunThroughput runs the configured throughput-probe binary once and
// parses its last line of stdout as a bits/s figure. A parse or exec
// failure is logged by the caller and counted as one skipped measurement
// cycle, never propagated.
func RunThroughput(ctx context.Context, cfg ThroughputConfig) (coordinator.ThroughputResultCommand, error) {
	out, err := run(ctx, cfg.BinPath, cfg.Args...)
	if err != nil {
		return coordinator.ThroughputResultCommand{}, err
	}

	bps, err := parseThroughputOutput(out)
	if err != nil {
		return coordinator.ThroughputResultCommand{}, err
	}

	return coordinator.ThroughputResultCommand{
		A:          cfg.Self,
		B:          cfg.Target,
		BitsPerSec: bps,
	}, nil
}

// parseThroughputOutput expects the last non-empty line of output to be a
// bare bits/s figure, matching the simplest iperf-like "report just a
// number" reporting mode.
func parseThroughputOutput(out string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 {
		return 0, errors.New("empty throughput probe output")
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	bps, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unparsable throughput probe output: %q", last)
	}
	return bps, nil
}
