package asyncio

import (
	"context"
	"os"
	"testing"
)

func tempFileWithContent(t *testing.T, content string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "sendfile")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// SendFile drives sysfd.Sendfile rather than rawConn directly, so these
// tests only confirm the retry/accounting loop around a fd that's always
// ready — the zero-count early exit — without faking the syscall itself.
func TestSendFileCompletesWhenCountIsZero(t *testing.T) {
	f := tempFileWithContent(t, "hello world")
	s := newTestSocket(&fakeRawConn{})

	n, err := s.SendFile(context.Background(), f, 0, 0)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
}
