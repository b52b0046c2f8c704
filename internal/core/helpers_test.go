package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"supplywatch/internal/infra/persistence/memory"
	"supplywatch/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func fixedClock() Option {
	return WithClock(ClockFunc(func() time.Time { return fixedNow }))
}

// sequentialIDs yields ROOM0001, ROOM0002, ...
func sequentialIDs() Option {
	var mu sync.Mutex
	n := 0
	return WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("ROOM%04d", n)
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(event domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	reg, err := NewRegistry(context.Background(), store, pub, append([]Option{fixedClock(), sequentialIDs()}, opts...)...)
	require.NoError(t, err)
	return reg, store, pub
}

func ptr[T any](v T) *T { return &v }
