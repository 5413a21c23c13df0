// Package wire implements the framed codec spoken to the coordinator and
// between peer agents: a 4-byte big-endian length prefix followed by a
// gob-encoded payload.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"time"

	"github.com/pkg/errors"
)

// MaxFrameLength guards against a corrupt or hostile length prefix causing
// an unbounded allocation.
const MaxFrameLength = 16 << 20 // 16 MiB

// LinkState is one link's wire-level measurement report.
type LinkState struct {
	SenderIP, ReceiverIP string
	ThroughputInKbps     float64
	ThroughputOutKbps    float64

	HasBandwidth bool
	BandwidthBPS float64

	HasAvailableBandwidth bool
	AvailableBandwidthBPS float64

	HasLatency bool
	LatencySec float64

	HasJitter bool
	JitterSec float64

	HasLoss bool
	Loss    float64
}

// BandwidthMessage carries a batch of per-link throughput/estimate reports.
type BandwidthMessage struct {
	LinkStates []LinkState
}

// RTTSample is one entry of a Rtts message.
type RTTSample struct {
	SenderIP, ReceiverIP string
	RTTSec               float64
	At                   time.Time
}

// Rtts carries a batch of measured RTT samples, independent of the
// per-link-roll-up latency figure on LinkState.
type Rtts struct {
	Rtts []RTTSample
}

// ProbeGapDataPoint is one raw packet-pair gap sample, shipped so the
// coordinator can audit or recompute the regression.
type ProbeGapDataPoint struct {
	SenderIP, ReceiverIP string
	GapInSec, GapOutSec  float64
	LengthBytes          float64
	At                   time.Time
}

// PgmMessage carries a batch of raw probe-gap-model data points.
type PgmMessage struct {
	PgmDps []ProbeGapDataPoint
}

// HelloMessage is the peer-identity handshake payload.
type HelloMessage struct {
	Message string
}

// Message is the tagged union of every wire message kind.
type Message struct {
	Bandwidth *BandwidthMessage
	Rtts      *Rtts
	Pgm       *PgmMessage
	Hello     *HelloMessage
}

// WriteMessage frames and writes one message: 4-byte big-endian length
// prefix, then the gob-encoded Message.
func WriteMessage(w io.Writer, msg Message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return errors.Wrap(err, "failed to encode wire message")
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return errors.Wrap(err, "failed to write frame length")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write frame payload")
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and decodes it. It reads
// exactly one frame's worth of bytes from r, so callers may keep reading
// further frames from the same stream.
func ReadMessage(r io.Reader) (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, errors.Wrap(err, "failed to read frame length")
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameLength {
		return Message{}, errors.Errorf("frame length %d exceeds maximum %d", n, MaxFrameLength)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, errors.Wrap(err, "failed to read frame payload")
	}
	var msg Message
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&msg); err != nil {
		return Message{}, errors.Wrap(err, "failed to decode wire message")
	}
	return msg, nil
}
