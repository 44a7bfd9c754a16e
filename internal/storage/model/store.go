// Package model stores trained model files and resolves them to local paths.
package model

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when a model does not exist.
var ErrNotFound = errors.New("model not found")

// Store is a backend holding model files by name.
type Store interface {
	// Write stores data under name
	Write(ctx context.Context, name string, data []byte) error

	// Read retrieves the named model
	Read(ctx context.Context, name string) ([]byte, error)

	// List returns the names of all stored models under prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if the named model is stored
	Exists(ctx context.Context, name string) (bool, error)
}
