// Package domain defines the room registry model shared by the core service,
// the persistence backends, and the gateway adapters.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the qualitative fill level of a supply item. Device reports are
// stored verbatim, so values outside the known set are legal.
type Status string

// Known supply statuses.
const (
	StatusFull    Status = "full"
	StatusLow     Status = "low"
	StatusEmpty   Status = "empty"
	StatusUnknown Status = "unknown"
)

// Known reports whether s is one of the four recognised statuses.
func (s Status) Known() bool {
	switch s {
	case StatusFull, StatusLow, StatusEmpty, StatusUnknown:
		return true
	default:
		return false
	}
}

// Standard supply keys assigned to rooms created without an explicit set.
const (
	SupplyToiletPaper = "toilet_paper"
	SupplySoap        = "soap"
	SupplyTowel       = "towel"
	SupplyTrash       = "trash"
)

// Defaults applied by CreateRoom when the caller omits a field.
const (
	DefaultRoomName = "Unnamed Room"
	DefaultCategory = "restroom"
	DefaultLocation = ""
)

// SupplyItem is one consumable tracked within a room.
type SupplyItem struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Room is a tracked physical space. The key set of Supplies is fixed when the
// room is created.
type Room struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Category  string                `json:"type"`
	Location  string                `json:"location"`
	Supplies  map[string]SupplyItem `json:"supplies"`
	CreatedAt Timestamp             `json:"created_at"`
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	cp := r
	cp.Supplies = cloneSupplies(r.Supplies)
	return cp
}

// HasSupply reports whether key is one of the room's supply keys.
func (r Room) HasSupply(key string) bool {
	_, ok := r.Supplies[key]
	return ok
}

// DefaultSupplies returns the standard supply set, every item full.
func DefaultSupplies() map[string]SupplyItem {
	return map[string]SupplyItem{
		SupplyToiletPaper: {Name: "Toilet Paper", Status: StatusFull},
		SupplySoap:        {Name: "Soap", Status: StatusFull},
		SupplyTowel:       {Name: "Paper Towel", Status: StatusFull},
		SupplyTrash:       {Name: "Trash Bin", Status: StatusFull},
	}
}

func cloneSupplies(in map[string]SupplyItem) map[string]SupplyItem {
	if in == nil {
		return nil
	}
	out := make(map[string]SupplyItem, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// TimestampLayout is the wire and storage format of Room.CreatedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a second-precision UTC time encoded with TimestampLayout.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// String formats the timestamp with TimestampLayout.
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimestampLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}
