package session

import (
	"context"
	"errors"

	"github.com/teemow/caltodo/internal/instrumentation"
)

// InstrumentedStore counts failed calls of the wrapped Store.
// ErrNotFound is a normal outcome and is not counted.
type InstrumentedStore struct {
	Store
	name    string
	metrics *instrumentation.Metrics
}

// Instrument wraps store so failures are recorded under name.
func Instrument(store Store, name string, metrics *instrumentation.Metrics) *InstrumentedStore {
	return &InstrumentedStore{Store: store, name: name, metrics: metrics}
}

func (s *InstrumentedStore) Get(ctx context.Context, id string) (*Credential, error) {
	cred, err := s.Store.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.metrics.RecordSessionStoreError(ctx, s.name, "get")
	}
	return cred, err
}

func (s *InstrumentedStore) Put(ctx context.Context, id string, cred *Credential) error {
	err := s.Store.Put(ctx, id, cred)
	if err != nil {
		s.metrics.RecordSessionStoreError(ctx, s.name, "put")
	}
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, id string) error {
	err := s.Store.Delete(ctx, id)
	if err != nil {
		s.metrics.RecordSessionStoreError(ctx, s.name, "delete")
	}
	return err
}

// Ping forwards to the wrapped store when it supports it.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	if p, ok := s.Store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
