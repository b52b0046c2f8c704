//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_publisher.go -package=mocks
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_backend.go -package=mocks supplywatch/pkg/domain Backend
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"supplywatch/pkg/domain"
)

// Publisher receives every committed change event. Implementations must not block.
type Publisher interface {
	Publish(event domain.ChangeEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.ChangeEvent) {}

// maxIDAttempts caps identifier regeneration on collision.
const maxIDAttempts = 16

// ErrIDExhausted is returned when no unused identifier could be generated.
var ErrIDExhausted = errors.New("could not allocate a unique room id")

// CreateRoomInput carries optional room attributes. Nil fields take the
// defaults; an empty Supplies map yields the standard supply set.
type CreateRoomInput struct {
	Name     *string
	Category *string
	Location *string
	Supplies map[string]domain.SupplyItem
}

// UpdateRoomInput carries the attributes to change. Nil fields are left as is.
type UpdateRoomInput struct {
	Name     *string
	Category *string
	Location *string
}

// Health describes the persistence state of the registry.
type Health struct {
	Driver    domain.Driver
	Rooms     int
	Degraded  bool
	LastError string
}

// Registry is the authoritative in-memory room state. Every mutation holds
// the write lock across the in-memory change, the snapshot write and the
// event hand-off, so events reach the publisher in application order.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]domain.Room
	backend    domain.Backend
	publisher  Publisher
	opts       registryOptions
	persistErr error
}

// NewRegistry loads the backend snapshot and returns a ready registry. A load
// failure is returned to the caller; the registry never starts from a
// partial state.
func NewRegistry(ctx context.Context, backend domain.Backend, publisher Publisher, opts ...Option) (*Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("registry backend is required")
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry{backend: backend, publisher: publisher, opts: o}

	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.run(ctx, "load", func(ctx context.Context) error {
		snapshot, err := backend.Load(ctx)
		if err != nil {
			return err
		}
		r.rooms = make(map[string]domain.Room, len(snapshot))
		for id, room := range snapshot {
			if room.ID == "" {
				room.ID = id
			}
			r.rooms[id] = room.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Driver reports the backend driver.
func (r *Registry) Driver() domain.Driver { return r.backend.Driver() }

// ListRooms returns copies of every room in no particular order.
func (r *Registry) ListRooms() []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.rooms, func(_ string, room domain.Room) domain.Room {
		return room.Clone()
	})
}

// GetRoom returns the room with exactly the given identifier.
func (r *Registry) GetRoom(id string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, domain.NotFoundError{Entity: domain.EntityRoom, ID: id}
	}
	return room.Clone(), nil
}

// CreateRoom adds a room with a fresh identifier.
func (r *Registry) CreateRoom(ctx context.Context, in CreateRoomInput) (domain.Room, error) {
	var created domain.Room
	err := r.run(ctx, "create_room", func(ctx context.Context) error {
		supplies, err := normalizeSupplies(in.Supplies)
		if err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		id, err := r.allocateIDLocked()
		if err != nil {
			return err
		}
		created = domain.Room{
			ID:        id,
			Name:      lo.FromPtrOr(in.Name, domain.DefaultRoomName),
			Category:  lo.FromPtrOr(in.Category, domain.DefaultCategory),
			Location:  lo.FromPtrOr(in.Location, domain.DefaultLocation),
			Supplies:  supplies,
			CreatedAt: domain.NewTimestamp(r.opts.clock.Now()),
		}
		r.rooms[id] = created
		created = created.Clone()
		r.commitLocked(ctx, "create_room", domain.RoomCreated{Room: created.Clone()})
		return nil
	})
	return created, err
}

// UpdateRoom changes the descriptive attributes of a room. The supply set is
// never touched.
func (r *Registry) UpdateRoom(ctx context.Context, id string, in UpdateRoomInput) (domain.Room, error) {
	var updated domain.Room
	err := r.run(ctx, "update_room", func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		room, ok := r.rooms[id]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRoom, ID: id}
		}
		room.Name = lo.FromPtrOr(in.Name, room.Name)
		room.Category = lo.FromPtrOr(in.Category, room.Category)
		room.Location = lo.FromPtrOr(in.Location, room.Location)
		r.rooms[id] = room
		updated = room.Clone()
		r.commitLocked(ctx, "update_room", domain.RoomUpdated{Room: updated.Clone()})
		return nil
	})
	return updated, err
}

// DeleteRoom removes a room and returns it as it was.
func (r *Registry) DeleteRoom(ctx context.Context, id string) (domain.Room, error) {
	var removed domain.Room
	err := r.run(ctx, "delete_room", func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		room, ok := r.rooms[id]
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityRoom, ID: id}
		}
		delete(r.rooms, id)
		removed = room.Clone()
		r.commitLocked(ctx, "delete_room", domain.RoomDeleted{Room: removed.Clone()})
		return nil
	})
	return removed, err
}

// ResolveSupply marks a supply full. Repeated calls each emit an event.
func (r *Registry) ResolveSupply(ctx context.Context, roomID, key string) (domain.Room, error) {
	var room domain.Room
	err := r.run(ctx, "resolve_supply", func(ctx context.Context) error {
		var err error
		room, err = r.setSupplyStatus(ctx, "resolve_supply", roomID, key, domain.StatusFull)
		return err
	})
	return room, err
}

// ReportSupply stores a device-reported status verbatim. An empty status is
// recorded as unknown.
func (r *Registry) ReportSupply(ctx context.Context, roomID, key string, status domain.Status) (domain.Room, error) {
	if status == "" {
		status = domain.StatusUnknown
	}
	var room domain.Room
	err := r.run(ctx, "report_supply", func(ctx context.Context) error {
		if !status.Known() {
			r.opts.logger.Debug("storing unrecognised supply status", "room_id", roomID, "item", key, "status", status)
		}
		var err error
		room, err = r.setSupplyStatus(ctx, "report_supply", roomID, key, status)
		return err
	})
	return room, err
}

func (r *Registry) setSupplyStatus(ctx context.Context, op, roomID, key string, status domain.Status) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.NotFoundError{Entity: domain.EntityRoom, ID: roomID}
	}
	item, ok := room.Supplies[key]
	if !ok {
		return domain.Room{}, domain.NotFoundError{Entity: domain.EntitySupply, ID: key}
	}
	item.Status = status
	room.Supplies[key] = item
	r.commitLocked(ctx, op, domain.SupplyStatusChanged{Room: room.ID, RoomName: room.Name, Item: key, Status: status})
	return room.Clone(), nil
}

// Health reports whether the most recent snapshot write failed.
func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := Health{Driver: r.backend.Driver(), Rooms: len(r.rooms)}
	if r.persistErr != nil {
		h.Degraded = true
		h.LastError = r.persistErr.Error()
	}
	return h
}

// commitLocked writes the snapshot and hands event to the publisher. A failed
// write leaves the change applied in memory; the next successful write
// persists the accumulated state. The caller holds r.mu.
func (r *Registry) commitLocked(ctx context.Context, op string, event domain.ChangeEvent) {
	r.persistLocked(ctx, op)
	r.publisher.Publish(event)
}

func (r *Registry) persistLocked(ctx context.Context, op string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.persistTimeout)
	defer cancel()
	driver := r.backend.Driver()
	if err := r.backend.Save(ctx, domain.Snapshot(r.rooms)); err != nil {
		r.persistErr = err
		r.opts.logger.Warn("snapshot not persisted, change kept in memory only",
			"operation", op, "driver", driver, "rooms", len(r.rooms), "error", err)
		if rec, ok := r.opts.metrics.(PersistFailureRecorder); ok {
			rec.PersistFailed(string(driver))
		}
		return
	}
	if r.persistErr != nil {
		r.opts.logger.Info("snapshot persistence recovered", "operation", op, "driver", driver)
	}
	r.persistErr = nil
}

func (r *Registry) allocateIDLocked() (string, error) {
	for range maxIDAttempts {
		id := r.opts.newID()
		if id == "" {
			continue
		}
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func normalizeSupplies(in map[string]domain.SupplyItem) (map[string]domain.SupplyItem, error) {
	if len(in) == 0 {
		return domain.DefaultSupplies(), nil
	}
	out := make(map[string]domain.SupplyItem, len(in))
	for key, item := range in {
		if key == "" {
			return nil, domain.InvalidInputError{Field: "supplies", Reason: "supply key must not be empty"}
		}
		if item.Name == "" {
			item.Name = key
		}
		if item.Status == "" {
			item.Status = domain.StatusFull
		}
		out[key] = item
	}
	return out, nil
}

// run wraps an operation with tracing, metrics and logging.
func (r *Registry) run(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := r.opts.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	r.opts.metrics.Observe(ctx, op, err == nil, time.Since(started))
	switch {
	case err == nil:
		r.opts.logger.Debug("registry operation", "operation", op, "duration", time.Since(started))
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrSupplyNotFound), errors.Is(err, domain.ErrInvalidInput):
		r.opts.logger.Info("registry operation rejected", "operation", op, "error", err)
	default:
		r.opts.logger.Error("registry operation failed", "operation", op, "error", err)
	}
	return err
}
