package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("blobstore: injected fault")

// Fault describes one failure to inject. The zero value injects nothing.
type Fault struct {
	FailOpen       bool  // fail Open
	FailPut        bool  // fail Put before any data lands
	FailDelete     bool  // fail Delete
	FailAfterBytes int64 // fail streamed writes once this many bytes were accepted; -1 disables
	FailOnSync     bool  // fail WritableBlob.Sync
	FailOnClose    bool  // fail WritableBlob.Close after the write completed
	Err            error // error to return; ErrInjected if nil
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// Faulty wraps a BlobStore and injects failures for crash and torn-write
// testing. Rules are matched by substring against blob names; the last
// added matching rule wins.
type Faulty struct {
	inner BlobStore

	mu    sync.Mutex
	rules []faultRule
}

type faultRule struct {
	pattern string
	fault   Fault
}

// NewFaulty wraps inner with no rules installed.
func NewFaulty(inner BlobStore) *Faulty {
	return &Faulty{inner: inner}
}

// AddRule installs a fault for blob names containing pattern.
func (s *Faulty) AddRule(pattern string, fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, faultRule{pattern: pattern, fault: fault})
}

// Reset removes all rules.
func (s *Faulty) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
}

func (s *Faulty) fault(name string) Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	var f Fault
	f.FailAfterBytes = -1
	for _, r := range s.rules {
		if strings.Contains(name, r.pattern) {
			f = r.fault
			if f.FailAfterBytes == 0 {
				f.FailAfterBytes = -1
			}
		}
	}
	return f
}

func (s *Faulty) Open(ctx context.Context, name string) (Blob, error) {
	if f := s.fault(name); f.FailOpen {
		return nil, f.err()
	}
	return s.inner.Open(ctx, name)
}

func (s *Faulty) Create(ctx context.Context, name string) (WritableBlob, error) {
	f := s.fault(name)
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &faultyWritableBlob{inner: w, fault: f}, nil
}

func (s *Faulty) Put(ctx context.Context, name string, data []byte) error {
	f := s.fault(name)
	if f.FailPut {
		return f.err()
	}
	if f.FailAfterBytes >= 0 && int64(len(data)) > f.FailAfterBytes {
		return f.err()
	}
	return s.inner.Put(ctx, name, data)
}

func (s *Faulty) Delete(ctx context.Context, name string) error {
	if f := s.fault(name); f.FailDelete {
		return f.err()
	}
	return s.inner.Delete(ctx, name)
}

func (s *Faulty) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// faultyWritableBlob enforces per-blob write faults. After an injected
// write failure the inner blob is never closed, so the torn data cannot be
// published, like a crash mid-transfer.
type faultyWritableBlob struct {
	inner    WritableBlob
	fault    Fault
	written  int64
	injected bool
}

func (w *faultyWritableBlob) Write(p []byte) (int, error) {
	if w.fault.FailAfterBytes >= 0 && w.written+int64(len(p)) > w.fault.FailAfterBytes {
		// Accept the part below the limit so torn writes look realistic.
		w.injected = true
		allowed := w.fault.FailAfterBytes - w.written
		if allowed > 0 {
			n, err := w.inner.Write(p[:allowed])
			w.written += int64(n)
			if err != nil {
				return n, err
			}
			return n, w.fault.err()
		}
		return 0, w.fault.err()
	}
	n, err := w.inner.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *faultyWritableBlob) Sync() error {
	if w.fault.FailOnSync {
		return w.fault.err()
	}
	return w.inner.Sync()
}

func (w *faultyWritableBlob) Close() error {
	if w.fault.FailOnClose {
		// Skip the inner Close so the blob is never published, like a
		// crash between the last write and the publish step.
		return w.fault.err()
	}
	if w.injected {
		return w.fault.err()
	}
	return w.inner.Close()
}

var _ io.Writer = (*faultyWritableBlob)(nil)
