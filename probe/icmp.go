package probe

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/coordinator"
)

// ICMPConfig names the external ICMP RTT prober binary and its target.
type ICMPConfig struct {
	BinPath string
	Args    []string
	Self    net.IP
	Target  net.IP
}

var icmpTimeRE = regexp.MustCompile(`time[=<]([0-9.]+)\s*ms`)

// RunICMP runs the configured ICMP prober once and parses its RTT. On exec
// or parse failure it returns the error as the command's Err field, rather
// than dropping the event; the link fabric records no latency for a
// command whose Err is set.
func RunICMP(ctx context.Context, cfg ICMPConfig) coordinator.ICMPResultCommand {
	out, err := run(ctx, cfg.BinPath, cfg.Args...)
	if err != nil {
		return coordinator.ICMPResultCommand{A: cfg.Self, B: cfg.Target, Err: err}
	}

	rtt, err := parseICMPOutput(out)
	if err != nil {
		return coordinator.ICMPResultCommand{A: cfg.Self, B: cfg.Target, Err: err}
	}
	return coordinator.ICMPResultCommand{A: cfg.Self, B: cfg.Target, RTT: rtt}
}

// parseICMPOutput extracts a "time=<float>ms" figure from ping-style output.
func parseICMPOutput(out string) (time.Duration, error) {
	m := icmpTimeRE.FindStringSubmatch(out)
	if m == nil {
		return 0, errors.Errorf("no RTT figure found in ICMP probe output: %q", out)
	}
	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unparsable ICMP RTT figure: %q", m[1])
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
