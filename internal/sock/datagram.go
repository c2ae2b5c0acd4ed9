package sock

import "github.com/searchktools/corehttp/internal/sysfd"

// ReceiveFrom reads one datagram, returning the sender's address.
func (s *Socket) ReceiveFrom(buf []byte) (int, Addr, error) {
	n, sa, err := sysfd.RecvFrom(s.fd, buf, 0)
	if err != nil {
		return n, Addr{}, err
	}
	addr, _ := fromSockaddr(sa)
	return n, addr, nil
}

// SendTo writes one datagram to addr.
func (s *Socket) SendTo(buf []byte, addr Addr) error {
	sa, err := addr.toSockaddr()
	if err != nil {
		return err
	}
	return sysfd.SendTo(s.fd, buf, 0, sa)
}

// ReceiveMsg reads one datagram along with ancillary control-message data.
func (s *Socket) ReceiveMsg(buf, control []byte) (n, oobn int, addr Addr, err error) {
	rawN, rawOobn, rawSA, rawErr := sysfd.RecvMsg(s.fd, buf, control, 0)
	if rawErr != nil {
		return rawN, rawOobn, Addr{}, rawErr
	}
	a, _ := fromSockaddr(rawSA)
	return rawN, rawOobn, a, nil
}

// SendMsg writes one datagram with an ancillary control message to addr.
func (s *Socket) SendMsg(buf, control []byte, addr Addr) (int, error) {
	sa, err := addr.toSockaddr()
	if err != nil {
		return 0, err
	}
	return sysfd.SendMsg(s.fd, buf, control, 0, sa)
}
