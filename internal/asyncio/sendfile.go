package asyncio

import (
	"context"
	"os"
	"time"

	"github.com/searchktools/corehttp/internal/netpoll"
	"github.com/searchktools/corehttp/internal/sysfd"
)

// SendFile transfers count bytes from f, starting at offset, directly into
// the socket via sendfile(2) — no user-space copy, per §4.D. offset advances
// as bytes are sent, matching the stdlib os.File convention of a caller-held
// cursor rather than the file's own.
func (s *Socket) SendFile(ctx context.Context, f *os.File, offset int64, count int) (int, error) {
	fd := int(f.Fd())
	written := 0
	for written < count {
		n, err := retry(ctx, s, netpoll.Writable, time.Time{}, func() (int, error) {
			return sysfd.Sendfile(s.raw.FD(), fd, &offset, count-written)
		})
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}
