package coordinator

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/netobserve/linkwatch/printer"
	"github.com/netobserve/linkwatch/wire"
)

// PeerPort is the peer-to-peer RPC port: every agent also listens here to
// answer other agents' hello probes.
const PeerPort = 50051

// PeerSender sends a hello message to another agent and waits for the
// connection/response or ctx's deadline, whichever comes first.
type PeerSender interface {
	SendHello(ctx context.Context, ip net.IP, message string) error
}

// peerClient is the default PeerSender: it dials the peer's PeerPort and
// writes one framed HelloMessage per connection.
type peerClient struct{}

// NewPeerClient returns the default network-backed PeerSender.
func NewPeerClient() PeerSender {
	return peerClient{}
}

func (peerClient) SendHello(ctx context.Context, ip net.IP, message string) error {
	addr := fmt.Sprintf("%s:%d", ip.String(), PeerPort)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to peer %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	msg := wire.Message{Hello: &wire.HelloMessage{Message: message}}
	if err := wire.WriteMessage(conn, msg); err != nil {
		return errors.Wrapf(err, "failed to send hello to peer %s", addr)
	}
	printer.V(2).Debugf("sent hello to peer %s\n", addr)
	return nil
}

// PeerServer accepts inbound hello messages from other agents on PeerPort
// and forwards them to the command inbox.
type PeerServer struct {
	inbox    Inbox
	listener net.Listener
}

// ListenPeerServer binds PeerPort and starts accepting connections in a
// background goroutine. Callers that only monitor traffic without
// exchanging peer identity may skip starting this.
func ListenPeerServer(inbox Inbox) (*PeerServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", PeerPort))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on peer port %d", PeerPort)
	}
	s := &PeerServer{inbox: inbox, listener: ln}
	go s.acceptLoop()
	return s, nil
}

func (s *PeerServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *PeerServer) handle(conn net.Conn) {
	defer conn.Close()
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		printer.V(2).Debugf("failed to read hello frame from %s: %v\n", conn.RemoteAddr(), err)
		return
	}
	if msg.Hello == nil {
		return
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return
	}
	select {
	case s.inbox <- MarkImportantCommand{IP: ip}:
	default:
		printer.V(2).Debugf("dropping hello from %s: command inbox full\n", host)
	}
}

// Close stops accepting new peer connections.
func (s *PeerServer) Close() error {
	return s.listener.Close()
}
