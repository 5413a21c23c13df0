// Package observation defines the parsed, per-frame data model produced by
// the frame parser and consumed by the stream reconstructors.
package observation

import (
	"net"
	"time"
)

// Direction classifies an Observation relative to the capturing interface.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionOutgoing
	DirectionIncoming
	DirectionIntercepted
)

func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	case DirectionIntercepted:
		return "intercepted"
	default:
		return "unknown"
	}
}

// Protocol identifies the transport variant carried by an Observation.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolICMP
	ProtocolOther
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolICMP:
		return "icmp"
	default:
		return "other"
	}
}

// TCPFlags holds the control bits this agent cares about.
type TCPFlags struct {
	SYN, ACK, FIN, RST bool
}

// TCPOptions holds the decoded TCP options of interest. Fields are
// zero-valued with their Has* companion false when absent or malformed.
type TCPOptions struct {
	HasTimestamp   bool
	TimestampValue uint32
	TimestampEcho  uint32

	HasWindowScale bool
	WindowScale    uint8

	HasMSS bool
	MSS    uint16
}

// Transport is a tagged union over the transport-layer fields the agent
// tracks. Only the fields relevant to Protocol are meaningful.
type Transport struct {
	Protocol Protocol

	SrcPort uint16
	DstPort uint16

	// TCP-only.
	Sequence       uint32
	Acknowledgment uint32
	Flags          TCPFlags
	Window         uint16
	Options        TCPOptions

	// Shared payload size (post-header bytes).
	PayloadLength int

	// Other-only: the raw IP protocol number.
	OtherProtocolNumber uint8
}

// IsPureACK reports whether this TCP segment carries no payload and no
// SYN/FIN, i.e. it exists only to acknowledge.
func (t Transport) IsPureACK() bool {
	return t.Protocol == ProtocolTCP && t.Flags.ACK && t.PayloadLength == 0 && !t.Flags.SYN && !t.Flags.FIN
}

// SegmentLength is the sequence-space length of a TCP segment: payload
// bytes, plus one each for SYN and FIN since they consume a sequence number.
func (t Transport) SegmentLength() uint32 {
	l := uint32(t.PayloadLength)
	if t.Flags.SYN {
		l++
	}
	if t.Flags.FIN {
		l++
	}
	return l
}

// Observation is a single parsed frame.
type Observation struct {
	SrcIP net.IP
	DstIP net.IP

	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr

	Transport Transport

	TotalLength int
	Timestamp   time.Time
	Direction   Direction
}

// Intercepted reports whether this observation was seen without the agent
// being either endpoint.
func (o *Observation) Intercepted() bool {
	return o.Direction == DirectionIntercepted
}
