package main

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hostelhub/internal/scanner"
)

// dirSource streams image files dropped into a directory as camera frames.
// Capture pipelines (e.g. ffmpeg writing stills) feed the directory; each new
// file becomes one frame. Implements scanner.Source.
type dirSource struct {
	dir      string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newDirSource(dir string, interval time.Duration) *dirSource {
	return &dirSource{dir: dir, interval: interval}
}

// Open acquires the directory and starts streaming new frames until the
// context is cancelled or Close is called.
func (s *dirSource) Open(ctx context.Context) (<-chan scanner.Frame, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan scanner.Frame)
	go func() {
		defer close(out)
		seen := make(map[string]bool)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				entries, err := os.ReadDir(s.dir)
				if err != nil {
					continue
				}
				for _, e := range entries {
					if e.IsDir() || seen[e.Name()] {
						continue
					}
					ext := strings.ToLower(filepath.Ext(e.Name()))
					if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
						continue
					}
					seen[e.Name()] = true
					img, err := loadImage(filepath.Join(s.dir, e.Name()))
					if err != nil {
						continue
					}
					select {
					case out <- scanner.Frame{Image: img, At: time.Now()}:
					case <-runCtx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Close releases the stream; safe to call more than once.
func (s *dirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
