package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by registry operations. Match with errors.Is.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrSupplyNotFound     = errors.New("supply not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// EntityType names the kind of record a NotFoundError refers to.
type EntityType string

// Entities addressed by registry lookups.
const (
	EntityRoom   EntityType = "room"
	EntitySupply EntityType = "supply"
)

// NotFoundError is returned when a room or supply key lookup fails.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is maps the error onto ErrRoomNotFound or ErrSupplyNotFound.
func (e NotFoundError) Is(target error) bool {
	switch e.Entity {
	case EntityRoom:
		return target == ErrRoomNotFound
	case EntitySupply:
		return target == ErrSupplyNotFound
	default:
		return false
	}
}

// InvalidInputError reports a request field that failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrInvalidInput.
func (e InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// StorageError wraps a backend failure. Every backend returns it from Load and
// Save so callers can test for ErrStorageUnavailable.
type StorageError struct {
	Driver Driver
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Driver, e.Op, e.Err)
}

// Unwrap exposes the underlying driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorageUnavailable.
func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// NewStorageError builds a StorageError; a nil err yields nil.
func NewStorageError(driver Driver, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Driver: driver, Op: op, Err: err}
}
