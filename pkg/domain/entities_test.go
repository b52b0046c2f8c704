package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStatusKnown(t *testing.T) {
	for _, s := range []Status{StatusFull, StatusLow, StatusEmpty, StatusUnknown} {
		if !s.Known() {
			t.Fatalf("expected %q to be known", s)
		}
	}
	for _, s := range []Status{"", "half", "FULL"} {
		if s.Known() {
			t.Fatalf("expected %q to be unknown", s)
		}
	}
}

func TestDefaultSuppliesAreFullAndFresh(t *testing.T) {
	a := DefaultSupplies()
	if len(a) != 4 {
		t.Fatalf("expected 4 default supplies, got %d", len(a))
	}
	for key, item := range a {
		if item.Status != StatusFull {
			t.Fatalf("supply %s: expected full, got %s", key, item.Status)
		}
	}
	a[SupplySoap] = SupplyItem{Name: "Soap", Status: StatusEmpty}
	if b := DefaultSupplies(); b[SupplySoap].Status != StatusFull {
		t.Fatalf("DefaultSupplies must return a fresh map")
	}
}

func TestRoomCloneIsDeep(t *testing.T) {
	room := Room{ID: "A1B2C3D4", Name: "Lobby", Supplies: DefaultSupplies()}
	cp := room.Clone()
	cp.Supplies[SupplySoap] = SupplyItem{Name: "Soap", Status: StatusLow}
	if room.Supplies[SupplySoap].Status != StatusFull {
		t.Fatalf("clone shares supplies with original")
	}
	if !room.HasSupply(SupplyTrash) || room.HasSupply("mirror") {
		t.Fatalf("unexpected HasSupply results")
	}
	if (Room{}).Clone().Supplies != nil {
		t.Fatalf("nil supplies should stay nil")
	}

	snap := Snapshot{room.ID: room}
	snapCopy := snap.Clone()
	snapCopy[room.ID].Supplies[SupplyTowel] = SupplyItem{Name: "Paper Towel", Status: StatusEmpty}
	if snap[room.ID].Supplies[SupplyTowel].Status != StatusFull {
		t.Fatalf("snapshot clone shares room supplies")
	}
}

func TestRoomJSONShape(t *testing.T) {
	created := NewTimestamp(time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.FixedZone("X", 3600)))
	room := Room{
		ID:        "ROOM0001",
		Name:      "Lobby",
		Category:  DefaultCategory,
		Location:  "Floor 1",
		Supplies:  map[string]SupplyItem{SupplySoap: {Name: "Soap", Status: StatusLow}},
		CreatedAt: created,
	}
	data, err := json.Marshal(room)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"ROOM0001","name":"Lobby","type":"restroom","location":"Floor 1","supplies":{"soap":{"name":"Soap","status":"low"}},"created_at":"2025-03-14 08:26:53"}`
	if string(data) != want {
		t.Fatalf("unexpected json\n got %s\nwant %s", data, want)
	}

	var decoded Room
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.CreatedAt.Equal(created.Time) || decoded.Category != DefaultCategory {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestTimestampEdgeCases(t *testing.T) {
	data, err := json.Marshal(Timestamp{})
	if err != nil || string(data) != `""` {
		t.Fatalf("zero timestamp: %s %v", data, err)
	}
	var ts Timestamp
	if err := json.Unmarshal([]byte(`""`), &ts); err != nil || !ts.IsZero() {
		t.Fatalf("empty string should decode to zero: %v", err)
	}
	if err := json.Unmarshal([]byte(`"2025-03-14T09:26:53Z"`), &ts); err == nil {
		t.Fatalf("expected layout mismatch error")
	}
	if err := json.Unmarshal([]byte(`42`), &ts); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	roomErr := fmt.Errorf("wrapped: %w", NotFoundError{Entity: EntityRoom, ID: "X"})
	if !errors.Is(roomErr, ErrRoomNotFound) || errors.Is(roomErr, ErrSupplyNotFound) {
		t.Fatalf("room not found should only match ErrRoomNotFound")
	}
	supplyErr := NotFoundError{Entity: EntitySupply, ID: "mirror"}
	if !errors.Is(supplyErr, ErrSupplyNotFound) || supplyErr.Error() != "supply mirror not found" {
		t.Fatalf("unexpected supply error %v", supplyErr)
	}
	if errors.Is(NotFoundError{Entity: "other"}, ErrRoomNotFound) {
		t.Fatalf("unknown entity should not match")
	}

	invalid := InvalidInputError{Field: "supplies", Reason: "empty key"}
	if !errors.Is(invalid, ErrInvalidInput) || !strings.Contains(invalid.Error(), "supplies") {
		t.Fatalf("unexpected invalid input error %v", invalid)
	}

	if NewStorageError(DriverFile, "save", nil) != nil {
		t.Fatalf("nil cause should produce nil error")
	}
	cause := errors.New("disk full")
	err := NewStorageError(DriverFile, "save", cause)
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("storage error should match sentinel and cause")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Driver != DriverFile || se.Op != "save" {
		t.Fatalf("unexpected storage error %#v", err)
	}
}

func TestEventVariants(t *testing.T) {
	room := Room{ID: "R1"}
	cases := []struct {
		event ChangeEvent
		kind  EventKind
	}{
		{RoomCreated{Room: room}, EventRoomCreated},
		{RoomUpdated{Room: room}, EventRoomUpdated},
		{RoomDeleted{Room: room}, EventRoomDeleted},
		{SupplyStatusChanged{Room: "R1", Item: SupplySoap, Status: StatusEmpty}, EventSupplyStatusChanged},
	}
	for _, c := range cases {
		if c.event.Kind() != c.kind || c.event.RoomID() != "R1" {
			t.Fatalf("unexpected event %T: %s %s", c.event, c.event.Kind(), c.event.RoomID())
		}
	}
}

func TestDriverRemote(t *testing.T) {
	remote := map[Driver]bool{
		DriverMemory: false, DriverFile: false, DriverSQLite: false,
		DriverBadger: false, DriverPostgres: true, DriverS3: true,
	}
	for d, want := range remote {
		if d.Remote() != want {
			t.Fatalf("%s.Remote()=%v want %v", d, d.Remote(), want)
		}
	}
}
