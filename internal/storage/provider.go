// Package storage keeps build reports as JSON documents in a directory.
package storage

// Provider is the interface for report document operations. Names are flat
// file names inside the archive root.
type Provider interface {
	// List returns the names of all stored documents in lexical order.
	List() ([]string, error)
	// Read returns the raw bytes of the named document.
	Read(name string) ([]byte, error)
	// Write atomically writes content under name.
	Write(name string, content []byte) error
	// Delete removes the named document.
	Delete(name string) error
}
