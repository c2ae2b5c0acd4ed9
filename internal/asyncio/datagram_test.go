package asyncio

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/corehttp/internal/netpoll"
	"github.com/searchktools/corehttp/internal/sock"
	"github.com/searchktools/corehttp/internal/sysfd"
)

// fakeRawConn is an in-memory rawConn double, mirroring conn_test.go's
// fakeSocket: each datagram method returns a preloaded result, optionally
// failing with EINTR once first to exercise the retry loop.
type fakeRawConn struct {
	interruptOnce bool
	interrupted   bool

	recvFromN    int
	recvFromAddr sock.Addr
	recvFromErr  error

	sendToErr error

	recvMsgN    int
	recvMsgOOBN int
	recvMsgAddr sock.Addr
	recvMsgErr  error

	sendMsgN   int
	sendMsgErr error

	sentBuf     []byte
	sentControl []byte
}

func (f *fakeRawConn) FD() int                                { return 1 }
func (f *fakeRawConn) Read(b []byte) (int, error)              { return 0, nil }
func (f *fakeRawConn) Write(b []byte) (int, error)             { return 0, nil }
func (f *fakeRawConn) Close() error                            { return nil }
func (f *fakeRawConn) Accept() (*sock.Socket, sock.Addr, error) { return nil, sock.Addr{}, nil }
func (f *fakeRawConn) Connect(addr sock.Addr) error             { return nil }

func (f *fakeRawConn) maybeInterrupt() bool {
	if f.interruptOnce && !f.interrupted {
		f.interrupted = true
		return true
	}
	return false
}

func (f *fakeRawConn) ReceiveFrom(buf []byte) (int, sock.Addr, error) {
	if f.maybeInterrupt() {
		return 0, sock.Addr{}, &sysfd.Error{Op: "recvfrom", Errno: unix.EINTR}
	}
	return f.recvFromN, f.recvFromAddr, f.recvFromErr
}

func (f *fakeRawConn) SendTo(buf []byte, addr sock.Addr) error {
	if f.maybeInterrupt() {
		return &sysfd.Error{Op: "sendto", Errno: unix.EINTR}
	}
	f.sentBuf = append([]byte{}, buf...)
	return f.sendToErr
}

func (f *fakeRawConn) ReceiveMsg(buf, control []byte) (int, int, sock.Addr, error) {
	if f.maybeInterrupt() {
		return 0, 0, sock.Addr{}, &sysfd.Error{Op: "recvmsg", Errno: unix.EINTR}
	}
	if f.recvMsgN > 0 {
		copy(buf, make([]byte, f.recvMsgN))
	}
	if f.recvMsgOOBN > 0 {
		for i := 0; i < f.recvMsgOOBN && i < len(control); i++ {
			control[i] = byte(i + 1)
		}
	}
	return f.recvMsgN, f.recvMsgOOBN, f.recvMsgAddr, f.recvMsgErr
}

func (f *fakeRawConn) SendMsg(buf, control []byte, addr sock.Addr) (int, error) {
	if f.maybeInterrupt() {
		return 0, &sysfd.Error{Op: "sendmsg", Errno: unix.EINTR}
	}
	f.sentBuf = append([]byte{}, buf...)
	f.sentControl = append([]byte{}, control...)
	return f.sendMsgN, f.sendMsgErr
}

// fakePool is a netpoll.Pool double that never actually suspends — the
// datagram tests below never drive the EAGAIN path, only EINTR-retry and
// immediate success/failure, so Suspend is not expected to be called.
type fakePool struct{}

func (fakePool) Add(fd int) error    { return nil }
func (fakePool) Remove(fd int) error { return nil }
func (fakePool) Run(ctx context.Context) error { return nil }
func (fakePool) Close() error        { return nil }
func (fakePool) Suspend(ctx context.Context, fd int, events netpoll.Events, deadline time.Time) (netpoll.Events, error) {
	return 0, nil
}

func newTestSocket(raw *fakeRawConn) *Socket {
	return &Socket{raw: raw, pool: fakePool{}}
}

func TestReceiveMessageTrimsControlToOOBN(t *testing.T) {
	raw := &fakeRawConn{recvMsgN: 5, recvMsgOOBN: 12, recvMsgAddr: sock.Addr{Port: 9}}
	s := newTestSocket(raw)

	buf := make([]byte, 64)
	control := make([]byte, 64)
	n, cm, addr, err := s.ReceiveMessage(context.Background(), buf, control)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if addr.Port != 9 {
		t.Errorf("addr.Port = %d, want 9", addr.Port)
	}
	if len(cm.Payload) != 12 {
		t.Fatalf("ControlMessage.Payload length = %d, want 12", len(cm.Payload))
	}
	for i, b := range cm.Payload {
		if b != byte(i+1) {
			t.Errorf("Payload[%d] = %d, want %d", i, b, i+1)
		}
	}
}

func TestReceiveMessageZeroOOBNYieldsEmptyPayload(t *testing.T) {
	raw := &fakeRawConn{recvMsgN: 3, recvMsgOOBN: 0}
	s := newTestSocket(raw)

	_, cm, _, err := s.ReceiveMessage(context.Background(), make([]byte, 16), make([]byte, 16))
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if len(cm.Payload) != 0 {
		t.Errorf("Payload length = %d, want 0", len(cm.Payload))
	}
}

func TestReceiveMessageRetriesOnEINTR(t *testing.T) {
	raw := &fakeRawConn{interruptOnce: true, recvMsgN: 1, recvMsgOOBN: 4}
	s := newTestSocket(raw)

	n, cm, _, err := s.ReceiveMessage(context.Background(), make([]byte, 16), make([]byte, 16))
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if !raw.interrupted {
		t.Fatal("expected the fake to have returned EINTR once before succeeding")
	}
	if n != 1 || len(cm.Payload) != 4 {
		t.Errorf("n=%d len(Payload)=%d, want n=1 len=4", n, len(cm.Payload))
	}
}

func TestSendMessageForwardsBufAndControl(t *testing.T) {
	raw := &fakeRawConn{sendMsgN: 7}
	s := newTestSocket(raw)

	n, err := s.SendMessage(context.Background(), []byte("payload"), []byte("ctrl"), sock.Addr{Port: 1})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if n != 7 {
		t.Errorf("n = %d, want 7", n)
	}
	if string(raw.sentBuf) != "payload" || string(raw.sentControl) != "ctrl" {
		t.Errorf("sent (%q, %q), want (%q, %q)", raw.sentBuf, raw.sentControl, "payload", "ctrl")
	}
}

func TestReceiveDatagram(t *testing.T) {
	raw := &fakeRawConn{recvFromN: 6, recvFromAddr: sock.Addr{Port: 42}}
	s := newTestSocket(raw)

	n, addr, err := s.ReceiveDatagram(context.Background(), make([]byte, 16))
	if err != nil {
		t.Fatalf("ReceiveDatagram: %v", err)
	}
	if n != 6 || addr.Port != 42 {
		t.Errorf("got n=%d addr.Port=%d, want n=6 addr.Port=42", n, addr.Port)
	}
}

func TestSendDatagram(t *testing.T) {
	raw := &fakeRawConn{}
	s := newTestSocket(raw)

	if err := s.SendDatagram(context.Background(), []byte("hi"), sock.Addr{Port: 5}); err != nil {
		t.Fatalf("SendDatagram: %v", err)
	}
	if string(raw.sentBuf) != "hi" {
		t.Errorf("sent %q, want %q", raw.sentBuf, "hi")
	}
}

func TestReceiveDatagramRetriesOnEINTR(t *testing.T) {
	raw := &fakeRawConn{interruptOnce: true, recvFromN: 4, recvFromAddr: sock.Addr{Port: 7}}
	s := newTestSocket(raw)

	n, addr, err := s.ReceiveDatagram(context.Background(), make([]byte, 16))
	if err != nil {
		t.Fatalf("ReceiveDatagram: %v", err)
	}
	if !raw.interrupted {
		t.Fatal("expected the fake to have returned EINTR once before succeeding")
	}
	if n != 4 || addr.Port != 7 {
		t.Errorf("got n=%d addr.Port=%d, want n=4 addr.Port=7", n, addr.Port)
	}
}
