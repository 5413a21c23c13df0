package probe

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/coordinator"
)

// PathloadConfig names the external path-load (packet-dispersion) probe
// binary and its target.
type PathloadConfig struct {
	BinPath string
	Args    []string
	Self    net.IP
	Target  net.IP
}

// RunPathload runs the configured path-load probe once and parses its
// reported loss fraction.
func RunPathload(ctx context.Context, cfg PathloadConfig) (coordinator.PathloadResultCommand, error) {
	out, err := run(ctx, cfg.BinPath, cfg.Args...)
	if err != nil {
		return coordinator.PathloadResultCommand{}, err
	}

	loss, err := parsePathloadLine(out)
	if err != nil {
		return coordinator.PathloadResultCommand{}, err
	}

	return coordinator.PathloadResultCommand{A: cfg.Self, B: cfg.Target, Loss: loss}, nil
}

// parsePathloadLine expects a line of the form "loss: 0.0123" among the
// probe's output and returns the fraction it reports.
func parsePathloadLine(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		const prefix = "loss:"
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		loss, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "unparsable pathload loss value: %q", value)
		}
		return loss, nil
	}
	return 0, errors.Errorf("no loss line found in pathload output: %q", out)
}
