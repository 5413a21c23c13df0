package agent

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/netobserve/linkwatch/agentid"
	"github.com/netobserve/linkwatch/capture"
	"github.com/netobserve/linkwatch/config"
	"github.com/netobserve/linkwatch/coordinator"
	"github.com/netobserve/linkwatch/faultlog"
	"github.com/netobserve/linkwatch/link"
	"github.com/netobserve/linkwatch/observation"
	"github.com/netobserve/linkwatch/printer"
	"github.com/netobserve/linkwatch/probe"
	"github.com/netobserve/linkwatch/snapshot"
	"github.com/netobserve/linkwatch/tick"
	"github.com/netobserve/linkwatch/util"
	"github.com/netobserve/linkwatch/version"
	"github.com/netobserve/linkwatch/wire"
)

func runE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPathFlag, config.Overrides{Host: hostFlag, Iface: ifaceFlag})
	if err != nil {
		return util.ExitError{ExitCode: 1, Err: err}
	}
	// printer reads its verbosity settings from the global viper instance.
	viper.Set("debug", cfg.Debug)
	viper.Set("verbose-level", cfg.VerboseLevel)
	if cfg.Client.Iface == "" {
		return util.ExitError{ExitCode: 1, Err: errors.New("no capture interface given (set client.iface or pass --iface)")}
	}

	printer.Infof("linkwatch agent %s starting as %s on interface %s\n", version.CLIDisplayString(), agentid.Self(), cfg.Client.Iface)

	meta, err := capture.NewInterfaceMeta(cfg.Client.Iface, capture.PrecisionMicrosecond)
	if err != nil {
		return util.ExitError{ExitCode: 2, Err: err}
	}

	source := capture.NewLiveSource(cfg.Client.Iface, capture.DefaultConfig())
	done := make(chan struct{})
	frames, err := source.Start(done)
	if err != nil {
		return util.ExitError{ExitCode: 2, Err: err}
	}

	fabric := link.New(link.Config{
		StreamTimeout:               cfg.Tick.StreamTimeout,
		NearLinkCapacityBytesPerSec: float64(cfg.Estimator.NearLinkCapacityBytesPerSec),
	})

	inbox := coordinator.NewInbox(64)
	peers := coordinator.NewPeerClient()

	peerServer, err := coordinator.ListenPeerServer(inbox)
	if err != nil {
		printer.Warningf("peer server unavailable: %v\n", err)
	} else {
		defer peerServer.Close()
	}

	client := coordinator.NewClient(fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port))
	defer client.Close()

	if err := client.PublishWithTimeout(wire.Message{Hello: &wire.HelloMessage{Message: agentid.Self().String()}}); err != nil {
		// Advisory only: the coordinator may come up later, so boot
		// continues rather than terminating.
		printer.Warningf("coordinator unreachable at startup: %v\n", err)
	}

	scheduler := tick.NewScheduler(cfg.Tick.Interval)
	defer scheduler.Stop()

	outbound := make(chan wire.Message, 8)
	go publisherLoop(client, outbound)

	if probesConfigured(cfg.Probe) {
		go probeLoop(cfg, fabric, inbox, done)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runLoop(fabric, frames, inbox, scheduler, peers, meta, cfg, outbound, done, sigCh)
	return nil
}

// runLoop is the single task that owns the fabric: it selects over the
// frame channel, the command inbox and the tick channel, so no lock is
// needed around fabric mutation.
func runLoop(
	fabric *link.Fabric,
	frames <-chan capture.Frame,
	inbox coordinator.Inbox,
	scheduler *tick.Scheduler,
	peers coordinator.PeerSender,
	meta capture.InterfaceMeta,
	cfg config.Config,
	outbound chan<- wire.Message,
	done chan<- struct{},
	sigCh <-chan os.Signal,
) {
	ticks := 0
	for {
		select {
		case <-sigCh:
			printer.Infoln("shutting down")
			close(done)
			close(outbound)
			return

		case frame, ok := <-frames:
			if !ok {
				printer.Warningln("capture source closed; stopping")
				close(outbound)
				return
			}
			obs, ok := observation.Parse(frame, meta)
			if !ok {
				continue
			}
			fabric.Register(obs, time.Now())

		case cmd, ok := <-inbox:
			if !ok {
				continue
			}
			coordinator.Dispatch(fabric, peers, cmd, time.Now())

		case now := <-scheduler.C():
			links := fabric.Tick(now, cfg.Tick.Interval)
			for _, msg := range composeMessages(links) {
				// Publication never blocks the fabric task: a full
				// outbound channel costs a snapshot, not a frame.
				select {
				case outbound <- msg:
				default:
					fabric.IncrementDroppedSnapshots()
					faultlog.Global.IncSnapshotDropped()
				}
			}

			ticks++
			if ticks%helloSweepEveryTicks == 0 {
				helloSweep(fabric, peers)
			}
		}
	}
}

// helloSweepEveryTicks spaces hello sweeps out to roughly once a minute at
// the default tick interval.
const helloSweepEveryTicks = 12

// helloSweep greets known peers so both sides can mark each other as
// agents worth tracking. Before any VIP is known every link address is
// tried; afterwards only the VIP set is re-greeted. It runs on the fabric
// task, so reading the link table needs no lock; the sends themselves
// happen off-task under the standard request deadline.
func helloSweep(fabric *link.Fabric, peers coordinator.PeerSender) {
	targets := fabric.VIPAddresses()
	if len(targets) == 0 {
		targets = fabric.LinkAddresses()
	}
	for _, addr := range targets {
		ip := net.ParseIP(addr)
		if ip == nil {
			continue
		}
		go func(ip net.IP) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := peers.SendHello(ctx, ip, agentid.Self().String()); err != nil {
				printer.V(2).Debugf("hello sweep to %s failed: %v\n", ip, err)
				return
			}
			fabric.MarkImportant(ip)
		}(ip)
	}
}

// composeMessages turns one tick's link snapshots into the outbound wire
// messages: a BandwidthMessage for every link, plus an Rtts batch for the
// links that measured latency this tick.
func composeMessages(links []snapshot.Link) []wire.Message {
	if len(links) == 0 {
		return nil
	}

	states := make([]wire.LinkState, 0, len(links))
	var rtts []wire.RTTSample
	for _, l := range links {
		states = append(states, wire.FromLinkSnapshot(l))
		if l.HasLatency {
			rtts = append(rtts, wire.RTTSample{
				SenderIP:   l.Key.A,
				ReceiverIP: l.Key.B,
				RTTSec:     l.LatencyAvg.Seconds(),
				At:         l.At,
			})
		}
	}

	msgs := []wire.Message{{Bandwidth: &wire.BandwidthMessage{LinkStates: states}}}
	if len(rtts) > 0 {
		msgs = append(msgs, wire.Message{Rtts: &wire.Rtts{Rtts: rtts}})
	}
	return msgs
}

// publisherLoop drains outbound messages to the coordinator. Each send
// carries its own deadline; a failed send drops the message and the next
// tick retries with fresh data.
func publisherLoop(client *coordinator.Client, outbound <-chan wire.Message) {
	for msg := range outbound {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Publish(ctx, msg); err != nil {
			faultlog.Report("coordinator publish", err)
		}
		cancel()
	}
}

func probesConfigured(p config.Probe) bool {
	return p.ICMPBin != "" || p.ThroughputBin != "" || p.PathloadBin != ""
}

// probeLoop periodically runs the configured external measurement tools
// against the VIP set and injects their results through the command inbox.
// Only the VIP set is safe to read from this task; until a peer is marked
// important there is nothing to probe.
func probeLoop(cfg config.Config, fabric *link.Fabric, inbox coordinator.Inbox, done <-chan struct{}) {
	self := net.ParseIP(cfg.Client.IP)
	if self == nil {
		printer.Warningln("probes configured but client.ip is unset; skipping external probes")
		return
	}

	ticker := time.NewTicker(cfg.Probe.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, addr := range fabric.VIPAddresses() {
				target := net.ParseIP(addr)
				if target == nil || target.Equal(self) {
					continue
				}
				runProbes(cfg.Probe, self, target, inbox)
			}
		}
	}
}

func runProbes(p config.Probe, self, target net.IP, inbox coordinator.Inbox) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Interval)
	defer cancel()

	if p.ICMPBin != "" {
		cmd := probe.RunICMP(ctx, probe.ICMPConfig{
			BinPath: p.ICMPBin,
			Args:    []string{"-c", "1", target.String()},
			Self:    self,
			Target:  target,
		})
		if cmd.Err != nil {
			faultlog.Global.IncToolProbeFailure()
			faultlog.Report("icmp probe", cmd.Err)
		}
		deliver(inbox, cmd)
	}
	if p.ThroughputBin != "" {
		cmd, err := probe.RunThroughput(ctx, probe.ThroughputConfig{
			BinPath: p.ThroughputBin,
			Args:    []string{target.String()},
			Self:    self,
			Target:  target,
		})
		if err != nil {
			faultlog.Global.IncToolProbeFailure()
			faultlog.Report("throughput probe", err)
		} else {
			deliver(inbox, cmd)
		}
	}
	if p.PathloadBin != "" {
		cmd, err := probe.RunPathload(ctx, probe.PathloadConfig{
			BinPath: p.PathloadBin,
			Args:    []string{target.String()},
			Self:    self,
			Target:  target,
		})
		if err != nil {
			faultlog.Global.IncToolProbeFailure()
			faultlog.Report("pathload probe", err)
		} else {
			deliver(inbox, cmd)
		}
	}
}

func deliver(inbox coordinator.Inbox, cmd coordinator.Command) {
	select {
	case inbox <- cmd:
	default:
		printer.V(2).Debugln("dropping probe result: command inbox full")
	}
}
