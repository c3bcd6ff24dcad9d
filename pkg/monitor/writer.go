package monitor

import (
	"bytes"
	"net/http"
)

// teeWriter passes every write through and keeps a bounded copy.
type teeWriter struct {
	http.ResponseWriter
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	if !w.truncated && n > 0 {
		if room := w.limit - int64(w.buf.Len()); int64(n) <= room {
			w.buf.Write(p[:n])
		} else {
			w.truncated = true
			w.buf.Reset()
		}
	}
	return n, err
}

// Flush supports streaming handlers.
func (w *teeWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *teeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
