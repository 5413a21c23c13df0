package observation

import (
	"bytes"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netobserve/linkwatch/capture"
	"github.com/netobserve/linkwatch/faultlog"
	"github.com/netobserve/linkwatch/printer"
)

// Parse decodes a captured frame into an Observation. It returns
// (nil, false) for truncated or unrecognised frames rather than an error;
// parse failures are absorbed into a drop counter, never propagated.
func Parse(frame capture.Frame, meta capture.InterfaceMeta) (*Observation, bool) {
	pkt := gopacket.NewPacket(frame.Data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	if err := pkt.ErrorLayer(); err != nil {
		printer.V(3).Debugf("dropping unparsable frame on %s: %v\n", meta.Name, err.Error())
		faultlog.Global.IncParserDrop()
		return nil, false
	}

	ethLayer := pkt.LinkLayer()
	var srcMAC, dstMAC []byte
	if eth, ok := ethLayer.(*layers.Ethernet); ok {
		srcMAC = eth.SrcMAC
		dstMAC = eth.DstMAC
	}

	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		faultlog.Global.IncParserDrop()
		return nil, false
	}
	srcIP, dstIP := netLayer.NetworkFlow().Endpoints()
	src := netIPFromEndpoint(srcIP)
	dst := netIPFromEndpoint(dstIP)
	if src == nil || dst == nil {
		faultlog.Global.IncParserDrop()
		return nil, false
	}

	transport, ok := parseTransport(pkt, netLayer)
	if !ok {
		faultlog.Global.IncParserDrop()
		return nil, false
	}

	obs := &Observation{
		SrcIP:       src,
		DstIP:       dst,
		SrcMAC:      srcMAC,
		DstMAC:      dstMAC,
		Transport:   transport,
		TotalLength: frame.WireLength,
		Timestamp:   frame.CapturedAt,
	}
	obs.Direction = classifyDirection(meta, src, dst, dstMAC)
	return obs, true
}

func classifyDirection(meta capture.InterfaceMeta, src, dst []byte, dstMAC []byte) Direction {
	if !meta.IsOwnIP(src) && !meta.IsOwnIP(dst) {
		return DirectionIntercepted
	}
	if len(meta.OwnMAC) > 0 && !bytes.Equal(dstMAC, meta.OwnMAC) {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

func netIPFromEndpoint(e gopacket.Endpoint) []byte {
	raw := e.Raw()
	if len(raw) != 4 && len(raw) != 16 {
		return nil
	}
	return append([]byte(nil), raw...)
}

func parseTransport(pkt gopacket.Packet, netLayer gopacket.NetworkLayer) (Transport, bool) {
	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok {
			return Transport{}, false
		}
		return Transport{
			Protocol:       ProtocolTCP,
			SrcPort:        uint16(tcp.SrcPort),
			DstPort:        uint16(tcp.DstPort),
			Sequence:       tcp.Seq,
			Acknowledgment: tcp.Ack,
			Flags: TCPFlags{
				SYN: tcp.SYN,
				ACK: tcp.ACK,
				FIN: tcp.FIN,
				RST: tcp.RST,
			},
			Window:        tcp.Window,
			Options:       decodeTCPOptions(tcp.Options),
			PayloadLength: len(tcp.LayerPayload()),
		}, true
	}
	if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			return Transport{}, false
		}
		return Transport{
			Protocol:      ProtocolUDP,
			SrcPort:       uint16(udp.SrcPort),
			DstPort:       uint16(udp.DstPort),
			PayloadLength: len(udp.LayerPayload()),
		}, true
	}
	if pkt.Layer(layers.LayerTypeICMPv4) != nil || pkt.Layer(layers.LayerTypeICMPv6) != nil {
		return Transport{Protocol: ProtocolICMP}, true
	}

	// Other: report the IP protocol number, still a valid observation for
	// byte-counting purposes even though no port pair exists.
	protoNum := ipProtocolNumber(netLayer)
	return Transport{Protocol: ProtocolOther, OtherProtocolNumber: protoNum}, true
}

func ipProtocolNumber(netLayer gopacket.NetworkLayer) uint8 {
	switch l := netLayer.(type) {
	case *layers.IPv4:
		return uint8(l.Protocol)
	case *layers.IPv6:
		return uint8(l.NextHeader)
	default:
		return 0
	}
}

// decodeTCPOptions extracts TIMESTAMPS/WSCALE/MSS, dropping malformed
// option lengths with a warning while still producing the packet.
func decodeTCPOptions(opts []layers.TCPOption) TCPOptions {
	var out TCPOptions
	for _, o := range opts {
		switch o.OptionType {
		case layers.TCPOptionKindTimestamps:
			if len(o.OptionData) != 8 {
				printer.Warningf("dropping malformed TCP timestamp option (len %d)\n", len(o.OptionData))
				continue
			}
			out.HasTimestamp = true
			out.TimestampValue = beUint32(o.OptionData[0:4])
			out.TimestampEcho = beUint32(o.OptionData[4:8])
		case layers.TCPOptionKindWindowScale:
			if len(o.OptionData) != 1 {
				printer.Warningf("dropping malformed TCP window scale option (len %d)\n", len(o.OptionData))
				continue
			}
			out.HasWindowScale = true
			out.WindowScale = o.OptionData[0]
		case layers.TCPOptionKindMSS:
			if len(o.OptionData) != 2 {
				printer.Warningf("dropping malformed TCP MSS option (len %d)\n", len(o.OptionData))
				continue
			}
			out.HasMSS = true
			out.MSS = beUint16(o.OptionData)
		}
	}
	return out
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
