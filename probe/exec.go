// Package probe wraps the external measurement tools (an iperf-like
// throughput prober, a path-load packet-dispersion prober, and an ICMP RTT
// prober) as subprocesses whose parsed stdout becomes a
// coordinator.Command on the command inbox.
package probe

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// run executes name with args under ctx's deadline and returns its
// captured stdout. A non-zero exit or I/O failure is reported as an error;
// the caller logs it and skips one measurement cycle.
func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "probe %s failed: %s", name, stderr.String())
	}
	return stdout.String(), nil
}
