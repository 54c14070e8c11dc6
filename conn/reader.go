// Package conn implements spec components A, B, and H: reading a
// request off the wire, parsing it, and driving it through the
// responder pipeline to a written response.
//
// The pooled read buffer mirrors the teacher's
// `bufPool = sync.Pool{New: func() any { b := make([]byte, 32*1024); return &b }}`
// in server/server.go, reused here for the header-read buffer to avoid
// per-connection allocation under load.
package conn

import (
	"net"
	"sync"
	"time"

	xerrors "github.com/nodewire/originserver/pkg/errors"
)

// MaxRequestBytes bounds the entire request buffer per spec §3.
const MaxRequestBytes = 32 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, MaxRequestBytes)
		return &b
	},
}

// ReadDeadlines bounds component A's per-read and total-request timeouts.
type ReadDeadlines struct {
	PerRead time.Duration
	Total   time.Duration
}

// DefaultReadDeadlines matches spec §4.A's documented defaults.
func DefaultReadDeadlines() ReadDeadlines {
	return ReadDeadlines{PerRead: 10 * time.Second, Total: 30 * time.Second}
}

var crlfcrlf = []byte("\r\n\r\n")

// ReadHeaderBlock slurps c until the first CRLFCRLF or MaxRequestBytes,
// whichever comes first. It returns the bytes up to and including the
// terminator; any bytes read past it (a pipelined request, which this
// server does not support) are discarded.
func ReadHeaderBlock(c net.Conn, d ReadDeadlines) ([]byte, *xerrors.Error) {
	deadline := time.Now().Add(d.Total)
	if err := c.SetReadDeadline(deadline); err != nil {
		return nil, xerrors.New(xerrors.KindIoError, nil).WithCause(err)
	}

	bufPtr := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufPtr)
	buf := *bufPtr

	total := 0
	for {
		if total >= len(buf) {
			return nil, xerrors.Oversize()
		}

		perRead := time.Now().Add(d.PerRead)
		if perRead.After(deadline) {
			perRead = deadline
		}
		if err := c.SetReadDeadline(perRead); err != nil {
			return nil, xerrors.New(xerrors.KindIoError, nil).WithCause(err)
		}

		n, err := c.Read(buf[total:])
		if n > 0 {
			total += n
			if idx := indexCRLFCRLF(buf[:total]); idx >= 0 {
				end := idx + len(crlfcrlf)
				out := make([]byte, end)
				copy(out, buf[:end])
				return out, nil
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, xerrors.New(xerrors.KindIoError, nil).WithCause(err)
			}
			return nil, xerrors.New(xerrors.KindIoError, nil).WithCause(err)
		}
	}
}

func indexCRLFCRLF(b []byte) int {
	for i := 0; i+4 <= len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' && b[i+2] == '\r' && b[i+3] == '\n' {
			return i
		}
	}
	return -1
}
