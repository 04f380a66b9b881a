package recognition

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"voxcode/pkg/audioconv"
)

const processedSuffix = ".processed"

var inboxExts = map[string]bool{
	".wav": true,
	".mp3": true,
	".ogg": true,
	".oga": true,
}

// Inbox transcribes audio files dropped into a directory, oldest name first.
// Handled files are renamed with a ".processed" suffix.
type Inbox struct {
	dir      string
	interval time.Duration
	tr       Transcriber
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewInbox(dir string, interval time.Duration, tr Transcriber, logger *slog.Logger) *Inbox {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Inbox{dir: dir, interval: interval, tr: tr, logger: logger}
}

func (in *Inbox) Start(ctx context.Context, emit func(Result)) error {
	if in.tr == nil {
		return fmt.Errorf("%w: no transcriber configured", ErrUnavailable)
	}
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.done = make(chan struct{})

	go in.loop(loopCtx, emit, in.done)
	in.logger.Info("watching inbox", "dir", in.dir)
	return nil
}

func (in *Inbox) Stop() error {
	in.mu.Lock()
	cancel, done := in.cancel, in.done
	in.cancel, in.done = nil, nil
	in.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (in *Inbox) loop(ctx context.Context, emit func(Result), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range in.pending() {
				if ctx.Err() != nil {
					return
				}
				text, err := in.transcribe(ctx, path)
				if err != nil {
					in.logger.Error("inbox file failed", "path", path, "err", err)
					continue
				}
				if text != "" {
					emit(Result{Text: text, Final: true})
				}
			}
		}
	}
}

func (in *Inbox) pending() []string {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.logger.Error("read inbox", "dir", in.dir, "err", err)
		return nil
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !inboxExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(in.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths
}

func (in *Inbox) transcribe(ctx context.Context, path string) (string, error) {
	// Rename first so a failing file is not retried forever.
	if err := os.Rename(path, path+processedSuffix); err != nil {
		return "", fmt.Errorf("mark processed: %w", err)
	}

	pcm, err := audioconv.DecodeFile(ctx, path+processedSuffix, filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	text, err := in.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}
