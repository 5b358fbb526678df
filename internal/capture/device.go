// Package capture provides frame sources for sessions and the registry that
// keeps each physical capture device bound to a single session.
package capture

import (
	"context"
	"errors"
	"sync"
)

var ErrDeviceClosed = errors.New("capture device closed")

// Device yields camera frames. Capture blocks until a frame is available or
// ctx is done.
type Device interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Feed is a Device whose frames are pushed from outside, typically a browser
// uploading video frames over HTTP or a websocket. Only the most recent frame
// is kept; a frame is handed out at most once.
type Feed struct {
	mu      sync.Mutex
	frame   []byte
	fresh   bool
	closed  bool
	arrived chan struct{}
}

func NewFeed() *Feed {
	return &Feed{arrived: make(chan struct{})}
}

// Push replaces the pending frame. Frames pushed after Close are dropped.
func (f *Feed) Push(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	f.frame = frame
	f.fresh = true
	close(f.arrived)
	f.arrived = make(chan struct{})
	return true
}

func (f *Feed) Capture(ctx context.Context) ([]byte, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, ErrDeviceClosed
		}
		if f.fresh {
			frame := f.frame
			f.fresh = false
			f.mu.Unlock()
			return frame, nil
		}
		arrived := f.arrived
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-arrived:
		}
	}
}

// Close wakes any pending Capture and makes later calls fail.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.frame = nil
	close(f.arrived)
	return nil
}

// Replay is a Device that returns a fixed sequence of frames, then keeps
// returning the last one. Used by the CLI and tests.
type Replay struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
}

func NewReplay(frames ...[]byte) *Replay {
	return &Replay{frames: frames}
}

func (r *Replay) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	frame := r.frames[r.next]
	if r.next < len(r.frames)-1 {
		r.next++
	}
	return frame, nil
}
