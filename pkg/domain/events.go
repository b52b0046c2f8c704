package domain

// EventKind tags a ChangeEvent variant.
type EventKind string

// Change event kinds emitted by the registry.
const (
	EventRoomCreated         EventKind = "room-created"
	EventRoomUpdated         EventKind = "room-updated"
	EventRoomDeleted         EventKind = "room-deleted"
	EventSupplyStatusChanged EventKind = "supply-status-changed"
)

// ChangeEvent describes one committed registry mutation. Each variant carries
// enough data for an observer to apply it without reading the registry.
type ChangeEvent interface {
	Kind() EventKind
	RoomID() string
}

// RoomCreated carries the newly created room.
type RoomCreated struct {
	Room Room
}

func (e RoomCreated) Kind() EventKind { return EventRoomCreated }
func (e RoomCreated) RoomID() string  { return e.Room.ID }

// RoomUpdated carries the room after the update.
type RoomUpdated struct {
	Room Room
}

func (e RoomUpdated) Kind() EventKind { return EventRoomUpdated }
func (e RoomUpdated) RoomID() string  { return e.Room.ID }

// RoomDeleted carries the removed room as it was just before deletion.
type RoomDeleted struct {
	Room Room
}

func (e RoomDeleted) Kind() EventKind { return EventRoomDeleted }
func (e RoomDeleted) RoomID() string  { return e.Room.ID }

// SupplyStatusChanged reports a new status for one supply of a room.
type SupplyStatusChanged struct {
	Room     string
	RoomName string
	Item     string
	Status   Status
}

func (e SupplyStatusChanged) Kind() EventKind { return EventSupplyStatusChanged }
func (e SupplyStatusChanged) RoomID() string  { return e.Room }
