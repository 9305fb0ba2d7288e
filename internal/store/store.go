// Package store persists accounts and settings.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/riotswitch/internal/model"
)

var (
	// ErrNotFound is returned when no account matches a username.
	ErrNotFound = errors.New("account not found")
	// ErrValidation is returned when a required field is missing or out of range.
	ErrValidation = errors.New("validation error")
	// ErrPersistence wraps I/O and decoding failures of the backing storage.
	ErrPersistence = errors.New("persistence error")
)

// CredentialStore is durable storage for accounts and the settings singleton.
// Implementations keep accounts in insertion order and enforce one account per username.
type CredentialStore interface {
	All(ctx context.Context) ([]model.Account, error)
	Get(ctx context.Context, username string) (model.Account, error)
	Upsert(ctx context.Context, username, password, region string) (bool, error)
	Delete(ctx context.Context, username string) (bool, error)
	Speed(ctx context.Context) (model.Speed, error)
	SetSpeed(ctx context.Context, speed model.Speed) error
	Close() error
}

func validateAccount(username, password, region string) error {
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if region == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrValidation, missing)
	}
	return nil
}

func validateSpeed(speed model.Speed) error {
	if !speed.Valid() {
		return fmt.Errorf("%w: unknown speed %d", ErrValidation, int(speed))
	}
	return nil
}

var (
	_ CredentialStore = (*FileStore)(nil)
	_ CredentialStore = (*SQLiteStore)(nil)
)
