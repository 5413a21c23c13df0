// Package testpacket builds synthetic on-wire frames for tests.
package testpacket

import (
	"encoding/binary"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	fakeSrcMAC = net.HardwareAddr{0xFF, 0xAA, 0xFA, 0xAA, 0xFF, 0xAA}
	fakeDstMAC = net.HardwareAddr{0xBD, 0xBD, 0xBD, 0xBD, 0xBD, 0xBD}
)

// TCPOpts describes the flags, sequence numbers, and options of a synthetic
// TCP segment.
type TCPOpts struct {
	SYN, ACK, FIN, RST bool
	Seq, Ack           uint32
	Window             uint16

	HasTimestamp            bool
	TimestampValue, TSEcho  uint32
	HasWindowScale          bool
	WindowScale             uint8
	HasMSS                  bool
	MSS                     uint16
}

// TCP serializes a single Ethernet+IPv4+TCP frame.
func TCP(src, dst net.IP, srcPort, dstPort int, payload []byte, opts TCPOpts) []byte {
	eth := &layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       fakeSrcMAC,
		DstMAC:       fakeDstMAC,
	}
	ip := &layers.IPv4{
		Version:  4,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src,
		DstIP:    dst,
		TTL:      64,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     opts.Seq,
		Ack:     opts.Ack,
		SYN:     opts.SYN,
		ACK:     opts.ACK,
		FIN:     opts.FIN,
		RST:     opts.RST,
		Window:  opts.Window,
	}
	if opts.HasMSS {
		data := make([]byte, 2)
		binary.BigEndian.PutUint16(data, opts.MSS)
		tcp.Options = append(tcp.Options, layers.TCPOption{
			OptionType:   layers.TCPOptionKindMSS,
			OptionLength: 4,
			OptionData:   data,
		})
	}
	if opts.HasWindowScale {
		tcp.Options = append(tcp.Options, layers.TCPOption{
			OptionType:   layers.TCPOptionKindWindowScale,
			OptionLength: 3,
			OptionData:   []byte{opts.WindowScale},
		})
	}
	if opts.HasTimestamp {
		data := make([]byte, 8)
		binary.BigEndian.PutUint32(data[0:4], opts.TimestampValue)
		binary.BigEndian.PutUint32(data[4:8], opts.TSEcho)
		tcp.Options = append(tcp.Options, layers.TCPOption{
			OptionType:   layers.TCPOptionKindTimestamps,
			OptionLength: 10,
			OptionData:   data,
		})
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	serOpts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	gopacket.SerializeLayers(buf, serOpts, eth, ip, tcp, gopacket.Payload(payload))
	return buf.Bytes()
}

// SYN builds a bare SYN segment.
func SYN(src, dst net.IP, srcPort, dstPort int, seq uint32) []byte {
	return TCP(src, dst, srcPort, dstPort, nil, TCPOpts{SYN: true, Seq: seq})
}

// SYNACK builds a SYN+ACK segment.
func SYNACK(src, dst net.IP, srcPort, dstPort int, seq, ack uint32) []byte {
	return TCP(src, dst, srcPort, dstPort, nil, TCPOpts{SYN: true, ACK: true, Seq: seq, Ack: ack})
}

// PureACK builds a zero-payload ACK segment.
func PureACK(src, dst net.IP, srcPort, dstPort int, seq, ack uint32) []byte {
	return TCP(src, dst, srcPort, dstPort, nil, TCPOpts{ACK: true, Seq: seq, Ack: ack})
}

// DataSegment builds an ACK-flagged segment carrying payload.
func DataSegment(src, dst net.IP, srcPort, dstPort int, seq, ack uint32, payload []byte) []byte {
	return TCP(src, dst, srcPort, dstPort, payload, TCPOpts{ACK: true, Seq: seq, Ack: ack})
}

// UDP serializes a single Ethernet+IPv4+UDP frame.
func UDP(src, dst net.IP, srcPort, dstPort int, payload []byte) []byte {
	eth := &layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       fakeSrcMAC,
		DstMAC:       fakeDstMAC,
	}
	ip := &layers.IPv4{
		Version:  4,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    dst,
		TTL:      64,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	udp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	serOpts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	gopacket.SerializeLayers(buf, serOpts, eth, ip, udp, gopacket.Payload(payload))
	return buf.Bytes()
}
