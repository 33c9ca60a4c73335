package report

import (
	"context"
	"errors"
)

// Publisher copies a finished artifact somewhere else.
type Publisher interface {
	// Publish uploads the file at path.
	Publish(ctx context.Context, path string) error

	// Close releases resources.
	Close() error
}

// MultiPublisher fans out to several publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a publisher that sends to every backend.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Len returns the number of backends.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

// Publish sends to all publishers, returns first error.
func (m *MultiPublisher) Publish(ctx context.Context, path string) error {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all publishers and joins their errors.
func (m *MultiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
