package cache

import (
	"errors"
	"time"
)

// ErrNoSuchStore is returned when operating on a store that was never opened.
var ErrNoSuchStore = errors.New("no such store")

// Storage is a collection of named stores.
// A store is created the first time it is opened and lives until deleted,
// so changing the name the unit opens leaves the old store orphaned.
//
// Implementations must be thread-safe!
type Storage interface {
	// Open returns the store with the given name, creating it if needed.
	Open(name string) (Store, error)
	// Has reports whether a store with the given name exists.
	Has(name string) (bool, error)
	// Delete removes the named store and all of its entries.
	// It returns false if there was no such store.
	Delete(name string) (bool, error)
	// Names returns the names of all stores, sorted.
	Names() ([]string, error)
}

// Store stores []byte values, which represent serialized HTTP exchanges,
// under request keys. Nothing in a store expires.
//
// Implementations must be thread-safe!
type Store interface {
	// Name is the identifier the store was opened with.
	Name() string
	// All returns all cache entries that have the specific key prefix.
	All(prefix string) ([]CacheEntry, error)
	// PutAll stores all given entries, or none of them if there is an error.
	// Existing entries with the same keys are overwritten.
	PutAll(entries []CacheEntry) error
	// AllKeys calls the given callback for each key with the given prefix.
	AllKeys(prefix string, cb func(string)) error
}

type CacheEntry struct {
	Key         string
	RequestedAt time.Time
	ReceivedAt  time.Time
	Bytes       []byte
}
