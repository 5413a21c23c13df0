// Package agent is the CLI entrypoint: it wires capture, parsing, the link
// fabric, the tick scheduler and the coordinator/peer boundary adapters
// into one running process.
package agent

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/netobserve/linkwatch/printer"
	"github.com/netobserve/linkwatch/util"
	"github.com/netobserve/linkwatch/version"
)

var (
	configPathFlag string
	hostFlag       string
	ifaceFlag      string
)

var rootCmd = &cobra.Command{
	Use:           "linkwatch",
	Short:         "Passive network-observation agent.",
	Long:          "linkwatch taps a network interface, reconstructs per-flow transport state, and reports per-link throughput, latency and available-bandwidth estimates to a coordinator.",
	Version:       version.CLIDisplayString(),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runE,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "config.toml", "path to a keyed-text configuration file")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "override client listen address")
	rootCmd.PersistentFlags().StringVar(&ifaceFlag, "iface", "", "override interface to capture on")
}

// Execute runs the CLI, mapping any returned error to a process exit code:
// the single place that does so.
func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		var exitErr util.ExitError
		if !errors.As(err, &exitErr) {
			cmd.Println(cmd.UsageString())
			exitErr = util.ExitError{ExitCode: 1, Err: err}
		}
		printer.Errorf("%s\n", exitErr.Err)
		os.Exit(exitErr.ExitCode)
	}
}
