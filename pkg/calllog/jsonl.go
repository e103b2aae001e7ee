package calllog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends one JSON object per line to a log file. The file
// is opened lazily and kept open across writes.
type JSONLWriter struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

func (w *JSONLWriter) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		if dir := filepath.Dir(w.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w.file = f
	}
	_, err = w.file.Write(append(line, '\n'))
	return err
}

// Close closes the underlying file, if open.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
