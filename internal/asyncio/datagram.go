package asyncio

import (
	"context"
	"time"

	"github.com/searchktools/corehttp/internal/netpoll"
	"github.com/searchktools/corehttp/internal/sock"
)

// ReceiveDatagram reads one datagram, suspending until one is available.
func (s *Socket) ReceiveDatagram(ctx context.Context, buf []byte) (int, sock.Addr, error) {
	type result struct {
		n    int
		addr sock.Addr
	}
	r, err := retry(ctx, s, netpoll.Readable, time.Time{}, func() (result, error) {
		n, sa, err := s.raw.ReceiveFrom(buf)
		return result{n, sa}, err
	})
	return r.n, r.addr, err
}

// SendDatagram writes one datagram to addr, suspending until writable.
func (s *Socket) SendDatagram(ctx context.Context, buf []byte, addr sock.Addr) error {
	_, err := retry(ctx, s, netpoll.Writable, time.Time{}, func() (struct{}, error) {
		return struct{}{}, s.raw.SendTo(buf, addr)
	})
	return err
}

// ControlMessage carries ancillary data from recvmsg(2) — IP_PKTINFO on
// IPv4 sockets, IPV6_PKTINFO on IPv6 sockets — per §4.D.
type ControlMessage struct {
	Payload []byte
}

// ReceiveMessage reads one datagram along with its ancillary control
// message (e.g. packet-info for the inbound local address), suspending
// until data is available.
func (s *Socket) ReceiveMessage(ctx context.Context, buf, control []byte) (int, ControlMessage, sock.Addr, error) {
	type result struct {
		n    int
		oobn int
		addr sock.Addr
	}
	r, err := retry(ctx, s, netpoll.Readable, time.Time{}, func() (result, error) {
		n, oobn, sa, err := s.raw.ReceiveMsg(buf, control)
		return result{n, oobn, sa}, err
	})
	if err != nil {
		return 0, ControlMessage{}, sock.Addr{}, err
	}
	return r.n, ControlMessage{Payload: control[:r.oobn]}, r.addr, nil
}

// SendMessage writes one datagram with an ancillary control message.
func (s *Socket) SendMessage(ctx context.Context, buf []byte, control []byte, addr sock.Addr) (int, error) {
	return retry(ctx, s, netpoll.Writable, time.Time{}, func() (int, error) {
		return s.raw.SendMsg(buf, control, addr)
	})
}
