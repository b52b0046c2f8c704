package memory

import (
	"context"
	"errors"
	"testing"

	"supplywatch/pkg/domain"
)

func TestStoreRoundTripIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	snapshot := domain.Snapshot{"R1": {ID: "R1", Name: "One", Supplies: domain.DefaultSupplies()}}
	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}
	snapshot["R1"].Supplies[domain.SupplySoap] = domain.SupplyItem{Name: "Soap", Status: domain.StatusEmpty}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["R1"].Supplies[domain.SupplySoap].Status != domain.StatusFull {
		t.Fatalf("store must not alias caller maps, got %+v", got["R1"].Supplies)
	}
	if store.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", store.Saves())
	}
}

func TestStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	store := NewStoreWith(domain.Snapshot{"R1": {ID: "R1"}})
	store.FailSaves(true)
	if err := store.Save(ctx, domain.Snapshot{}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	store.FailLoads(true)
	if _, err := store.Load(ctx); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.FailLoads(false)
	got, err := store.Load(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("failed save must keep previous snapshot: %v %+v", err, got)
	}
	if store.Driver() != domain.DriverMemory || store.Close() != nil {
		t.Fatalf("unexpected driver/close behaviour")
	}
}
