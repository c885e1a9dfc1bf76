package scanner

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

// fakeSource feeds scripted frames and records releases. Close is safe to
// call repeatedly, mirroring the Source contract.
type fakeSource struct {
	mu      sync.Mutex
	frames  chan Frame
	closed  bool
	closes  int
	openErr error
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{frames: make(chan Frame, buffer)}
}

func (f *fakeSource) Open(ctx context.Context) (<-chan Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.closed = false
	return f.frames, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if !f.closed {
		f.closed = true
	}
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSource) push(img image.Image) {
	f.mu.Lock()
	ch := f.frames
	f.mu.Unlock()
	ch <- Frame{Image: img, At: time.Now()}
}

// frame carrying a token via a 1x1 tagged image.
type tokenImage struct {
	image.Image
	token string
}

func tagged(token string) tokenImage {
	return tokenImage{Image: image.NewGray(image.Rect(0, 0, 1, 1)), token: token}
}

var errNoCode = errors.New("no code")

// decodeTagged succeeds only on tokenImage frames.
func decodeTagged(img image.Image) (string, error) {
	if t, ok := img.(tokenImage); ok && t.token != "" {
		return t.token, nil
	}
	return "", errNoCode
}

func TestSessionMatchDeliversOnceAndReleases(t *testing.T) {
	src := newFakeSource(4)
	sess := NewSession(src, decodeTagged)

	events, err := sess.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Noise frames first, then the real code twice; only one match may fire.
	src.push(image.NewGray(image.Rect(0, 0, 1, 1)))
	src.push(tagged("tok-1"))
	src.push(tagged("tok-1"))

	evt, ok := <-events
	if !ok {
		t.Fatal("event stream closed before match")
	}
	if evt.Err != nil || evt.Token != "tok-1" {
		t.Fatalf("got event %+v, want token tok-1", evt)
	}
	// The source is released before the match reaches the consumer.
	if !src.isClosed() {
		t.Fatal("source still open when match was delivered")
	}

	if _, ok := <-events; ok {
		t.Fatal("received a second event; sessions must match at most once")
	}
	sess.Stop()
	if sess.State() != StateIdle {
		t.Fatalf("state after stop: %v, want idle", sess.State())
	}
}

func TestSessionDecodeMissesKeepScanning(t *testing.T) {
	src := newFakeSource(8)
	sess := NewSession(src, decodeTagged)

	events, err := sess.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5; i++ {
		src.push(image.NewGray(image.Rect(0, 0, 1, 1)))
	}
	src.push(tagged("tok-2"))

	evt := <-events
	if evt.Token != "tok-2" {
		t.Fatalf("got %+v, want tok-2 after misses", evt)
	}
	sess.Stop()
}

func TestSessionStopReleasesAndIsIdempotent(t *testing.T) {
	src := newFakeSource(1)
	sess := NewSession(src, decodeTagged)

	if _, err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess.Stop()
	sess.Stop()
	sess.Stop()

	if !src.isClosed() {
		t.Fatal("source not released after stop")
	}
	if sess.State() != StateIdle {
		t.Fatalf("state: %v, want idle", sess.State())
	}
}

func TestSessionContextCancelReleases(t *testing.T) {
	src := newFakeSource(1)
	sess := NewSession(src, decodeTagged)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := sess.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	if _, ok := <-events; ok {
		t.Fatal("expected closed stream after cancel")
	}
	if !src.isClosed() {
		t.Fatal("source not released after context cancel")
	}
}

func TestSessionOpenFailureIsTerminal(t *testing.T) {
	src := newFakeSource(1)
	src.openErr = errors.New("camera busy")
	sess := NewSession(src, decodeTagged)

	if _, err := sess.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if sess.State() != StateError {
		t.Fatalf("state: %v, want error", sess.State())
	}
	if !src.isClosed() {
		t.Fatal("source not released on failed start")
	}

	// Explicit retry succeeds once the device frees up.
	src.openErr = nil
	if _, err := sess.Start(context.Background()); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	sess.Stop()
}

func TestSessionSourceClosedSurfacesSessionError(t *testing.T) {
	src := newFakeSource(1)
	sess := NewSession(src, decodeTagged)

	events, err := sess.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	close(src.frames)

	evt := <-events
	if !errors.Is(evt.Err, ErrSourceClosed) {
		t.Fatalf("got %+v, want ErrSourceClosed", evt)
	}
	if !src.isClosed() {
		t.Fatal("source not released after stream death")
	}
}

func TestSessionRestartStopsPreviousRun(t *testing.T) {
	src := newFakeSource(4)
	sess := NewSession(src, decodeTagged)

	if _, err := sess.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}

	// Second start must fully stop the first run before reacquiring.
	src.mu.Lock()
	src.frames = make(chan Frame, 4)
	src.mu.Unlock()
	events, err := sess.Start(context.Background())
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	src.push(tagged("tok-3"))
	evt := <-events
	if evt.Token != "tok-3" {
		t.Fatalf("got %+v, want tok-3 from the second run", evt)
	}
	sess.Stop()
}
