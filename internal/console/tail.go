// Package console streams an instance's console log to live subscribers.
package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
)

const (
	// backlogBytes is how much history a new subscriber receives.
	backlogBytes = 16 * 1024

	defaultPollInterval = 500 * time.Millisecond
)

// Follower tails a single log file, polling for appended data. The server
// process holds the file open in append mode, so rotation is not a concern
// within one instance lifetime.
type Follower struct {
	Path         string
	PollInterval time.Duration
}

// NewFollower tails the log file at path.
func NewFollower(path string) *Follower {
	return &Follower{Path: path, PollInterval: defaultPollInterval}
}

// Follow sends complete log lines to send until ctx is canceled or send
// fails. It starts with up to backlogBytes of history. A missing file is
// not an error; the follower waits for it to appear.
func (f *Follower) Follow(ctx context.Context, send func(line []byte) error) error {
	interval := f.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var file *os.File
	var offset int64
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	pending := []byte{}

	for {
		if file == nil {
			opened, err := os.Open(f.Path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			} else {
				file = opened
				info, err := file.Stat()
				if err != nil {
					return err
				}
				offset = info.Size() - backlogBytes
				if offset < 0 {
					offset = 0
				}
				if _, err := file.Seek(offset, io.SeekStart); err != nil {
					return err
				}
			}
		}

		if file != nil {
			chunk := make([]byte, 32*1024)
			for {
				n, err := file.Read(chunk)
				if n > 0 {
					offset += int64(n)
					pending = append(pending, chunk[:n]...)
					var sendErr error
					pending, sendErr = flushLines(pending, send)
					if sendErr != nil {
						return sendErr
					}
				}
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// flushLines emits every complete line in buf and returns the remainder.
func flushLines(buf []byte, send func(line []byte) error) ([]byte, error) {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf, nil
		}
		line := bytes.TrimRight(buf[:idx], "\r")
		if err := send(line); err != nil {
			return buf, err
		}
		buf = buf[idx+1:]
	}
}
