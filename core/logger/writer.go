package logger

import (
	"io"
	"sync"
)

// asyncWriter moves log output off the caller's goroutine. Lines are
// written in order to every sink by a single loop.
type asyncWriter struct {
	out     io.Writer
	lines   chan []byte
	flushes chan chan error
	done    chan struct{}
	close   sync.Once

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, queue int) *asyncWriter {
	if queue <= 0 {
		queue = 256
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		out:     io.MultiWriter(sinks...),
		lines:   make(chan []byte, queue),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			if _, err := w.out.Write(line); err != nil {
				w.fail(err)
			}
		case ack := <-w.flushes:
			// Everything queued before the request is written first.
			for drained := false; !drained; {
				select {
				case line, ok := <-w.lines:
					if !ok {
						ack <- w.Err()
						return
					}
					if _, err := w.out.Write(line); err != nil {
						w.fail(err)
					}
				default:
					drained = true
				}
			}
			ack <- w.Err()
		}
	}
}

// Write queues a copy of p. It blocks only when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every line queued so far has been written.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.Err()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.close.Do(func() { close(w.lines) })
	<-w.done
	return w.Err()
}

// Err returns the first write error seen.
func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
