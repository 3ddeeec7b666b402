package cache

import (
	"sort"
	"strings"
	"sync"
)

// MemStorage keeps stores in memory. Useful for tests and for running
// without a database file.
type MemStorage struct {
	mutex  *sync.RWMutex
	stores map[string]map[string]CacheEntry
}

func NewMemStorage() MemStorage {
	return MemStorage{
		mutex:  &sync.RWMutex{},
		stores: make(map[string]map[string]CacheEntry),
	}
}

func (m MemStorage) Open(name string) (Store, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string]CacheEntry)
	}
	return memStore{storage: m, name: name}, nil
}

func (m MemStorage) Has(name string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.stores[name]
	return ok, nil
}

func (m MemStorage) Delete(name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.stores[name]
	delete(m.stores, name)
	return ok, nil
}

func (m MemStorage) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type memStore struct {
	storage MemStorage
	name    string
}

func (s memStore) Name() string {
	return s.name
}

func (s memStore) All(prefix string) ([]CacheEntry, error) {
	s.storage.mutex.RLock()
	defer s.storage.mutex.RUnlock()
	entries, ok := s.storage.stores[s.name]
	if !ok {
		return nil, ErrNoSuchStore
	}
	found := make([]CacheEntry, 0)
	for key, entry := range entries {
		if strings.HasPrefix(key, prefix) {
			found = append(found, copyEntry(entry))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Key < found[j].Key })
	return found, nil
}

func (s memStore) PutAll(entries []CacheEntry) error {
	s.storage.mutex.Lock()
	defer s.storage.mutex.Unlock()
	stored, ok := s.storage.stores[s.name]
	if !ok {
		return ErrNoSuchStore
	}
	for _, entry := range entries {
		stored[entry.Key] = copyEntry(entry)
	}
	return nil
}

func (s memStore) AllKeys(prefix string, cb func(string)) error {
	entries, err := s.All(prefix)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		cb(entry.Key)
	}
	return nil
}

// copyEntry makes sure callers never share byte slices with the store.
func copyEntry(ce CacheEntry) CacheEntry {
	bytes := make([]byte, len(ce.Bytes))
	copy(bytes, ce.Bytes)
	ce.Bytes = bytes
	return ce
}
