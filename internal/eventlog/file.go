package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// FileLog appends events as JSON lines. Lines are written with a single
// write on an O_APPEND descriptor, so concurrent processes do not interleave.
type FileLog struct {
	mu   sync.Mutex
	file *os.File
}

func OpenFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &FileLog{file: f}, nil
}

func (l *FileLog) Append(ctx context.Context, event domain.MatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(prepare(event))
	if err != nil {
		return fmt.Errorf("encode match event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append match event: %w", err)
	}
	return nil
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
