// Package capture wraps live packet capture on a single network interface.
package capture

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/clock"
	"github.com/netobserve/linkwatch/printer"
)

// Config holds the capture-open options. ImmediateMode and Precision are
// recorded but not applied: Start opens the handle with pcap.OpenLive,
// which sets neither.
type Config struct {
	Promisc       bool
	ImmediateMode bool
	Timeout       time.Duration // 0 = block
	Precision     Precision
	SnapLength    int
	BPFFilter     string
}

// DefaultConfig captures promiscuously with a snap length sized for
// L2+IPv4+TCP including options. It sets ImmediateMode, which Start does
// not apply (see Config).
func DefaultConfig() Config {
	return Config{
		Promisc:       true,
		ImmediateMode: true,
		Timeout:       0,
		Precision:     PrecisionMicrosecond,
		SnapLength:    134,
	}
}

// Frame is one owned captured frame. It is valid from capture to parse,
// then dropped.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
	WireLength int
}

// Source is a capture source bound to one interface.
type Source interface {
	// Start begins the blocking capture loop in a dedicated goroutine and
	// returns once packets are being watched, or a boot-fatal error if the
	// device could not be opened.
	Start(done <-chan struct{}) (<-chan Frame, error)
}

type liveSource struct {
	interfaceName string
	cfg           Config
	clock         clock.Clock
}

// NewLiveSource returns a Source backed by libpcap.
func NewLiveSource(interfaceName string, cfg Config) Source {
	return &liveSource{interfaceName: interfaceName, cfg: cfg, clock: clock.Real{}}
}

func (s *liveSource) Start(done <-chan struct{}) (<-chan Frame, error) {
	handle, err := pcap.OpenLive(s.interfaceName, int32(s.cfg.SnapLength), s.cfg.Promisc, s.captureTimeout())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture on %s", s.interfaceName)
	}
	if s.cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(s.cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, errors.Wrap(err, "failed to set BPF filter")
		}
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	pktChan := packetSource.Packets()

	frames := make(chan Frame, 64)
	go func() {
		defer func() {
			close(frames)
			handle.Close()
		}()

		start := time.Now()
		count := 0
		for {
			select {
			case <-done:
				return
			case pkt, ok := <-pktChan:
				if !ok {
					return
				}
				frames <- Frame{
					Data:       pkt.Data(),
					CapturedAt: s.clock.Now(),
					WireLength: pkt.Metadata().Length,
				}
				if count == 0 {
					printer.Debugf("Time to first packet on %s: %s\n", s.interfaceName, time.Since(start))
				}
				count++
			}
		}
	}()
	return frames, nil
}

func (s *liveSource) captureTimeout() time.Duration {
	if s.cfg.Timeout <= 0 {
		return pcap.BlockForever
	}
	return s.cfg.Timeout
}
