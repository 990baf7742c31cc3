package libbus

import (
	"context"
	"sync"
)

// InMem is an in-memory implementation of Messenger for single-process use.
// Publish delivers to local Stream subscribers; Request/Serve work as
// same-process request-reply. No network involved.
type InMem struct {
	mu       sync.RWMutex
	closed   bool
	streams  map[string][]chan<- []byte
	handlers map[string]Handler
}

// NewInMem returns a new in-memory Messenger.
func NewInMem() *InMem {
	return &InMem{
		streams:  make(map[string][]chan<- []byte),
		handlers: make(map[string]Handler),
	}
}

func (p *InMem) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrConnectionClosed
	}
	// Copy the subscriber list so the lock isn't held while sending.
	subs := make([]chan<- []byte, len(p.streams[subject]))
	copy(subs, p.streams[subject])
	p.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *InMem) Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	p.streams[subject] = append(p.streams[subject], ch)
	sub := &inmemSubscription{subject: subject, ch: ch, inmem: p}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return sub, nil
}

func (p *InMem) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrConnectionClosed
	}
	handler := p.handlers[subject]
	p.mu.RUnlock()

	if handler == nil {
		return nil, ErrRequestTimeout
	}
	return handler(ctx, data)
}

func (p *InMem) Serve(ctx context.Context, subject string, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	p.handlers[subject] = handler
	p.mu.Unlock()

	sub := &inmemServeSubscription{subject: subject, inmem: p}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return sub, nil
}

func (p *InMem) Close() error {
	p.mu.Lock()
	p.closed = true
	p.streams = make(map[string][]chan<- []byte)
	p.handlers = make(map[string]Handler)
	p.mu.Unlock()
	return nil
}

type inmemSubscription struct {
	subject string
	ch      chan<- []byte
	inmem   *InMem
}

func (s *inmemSubscription) Unsubscribe() error {
	s.inmem.mu.Lock()
	defer s.inmem.mu.Unlock()
	subs := s.inmem.streams[s.subject]
	for i, c := range subs {
		if c == s.ch {
			s.inmem.streams[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

type inmemServeSubscription struct {
	subject string
	inmem   *InMem
}

func (s *inmemServeSubscription) Unsubscribe() error {
	s.inmem.mu.Lock()
	delete(s.inmem.handlers, s.subject)
	s.inmem.mu.Unlock()
	return nil
}

var _ Messenger = (*InMem)(nil)
