package lsp

import (
	"bufio"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// ReadWriteCloser combines an io.ReadCloser and io.WriteCloser into a single io.ReadWriteCloser
type ReadWriteCloser struct {
	reader *bufio.Reader
	writer *bufio.Writer
	closer multiCloser
	mu     sync.Mutex
}

type multiCloser struct {
	closers []io.Closer
}

// Close closes every closer and reports all failures together.
func (mc multiCloser) Close() error {
	var err error
	for _, c := range mc.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// NewReadWriteCloser creates a new ReadWriteCloser from separate read and write closers
func NewReadWriteCloser(r io.ReadCloser, w io.WriteCloser) *ReadWriteCloser {
	return &ReadWriteCloser{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
		closer: multiCloser{closers: []io.Closer{r, w}},
	}
}

// Read is not guarded by the mutex so a blocked read never holds up a write.
func (rwc *ReadWriteCloser) Read(p []byte) (int, error) {
	return rwc.reader.Read(p)
}

// Write writes and flushes p.
func (rwc *ReadWriteCloser) Write(p []byte) (int, error) {
	rwc.mu.Lock()
	defer rwc.mu.Unlock()
	n, err := rwc.writer.Write(p)
	if err != nil {
		return n, err
	}
	return n, rwc.writer.Flush()
}

// Close closes both the reader and writer
func (rwc *ReadWriteCloser) Close() error {
	rwc.mu.Lock()
	defer rwc.mu.Unlock()
	return rwc.closer.Close()
}
