// Package storage defines the abstract document store the engine syncs
// against, and a local file-system implementation of it.
package storage

import "github.com/starford/dagaz/internal/models"

// Provider is the interface for vault document operations. All paths
// are relative to the vault root.
type Provider interface {
	// List returns metadata for every .md document under dir.
	List(dir string) ([]models.DocumentInfo, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the document at path.
	Write(path string, content []byte) error
	// Delete removes the document at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
