package vault

import (
	"os"
	"sync"

	"github.com/jpfluger/encyphrix/xerr"
)

// StoreKeyName is the single fixed key the vault persists under, per
// the host persistence contract.
const StoreKeyName = "encyphrix.vault.v1"

// Store is the host-supplied persistence contract: a synchronous
// get/put/remove keyed byte store. Hosts may back it with
// localStorage, a file, a database row, or anything else.
type Store interface {
	Get(name string) ([]byte, bool, error)
	Put(name string, data []byte) error
	Remove(name string) error
}

// MemStore is an in-process, map-backed Store. It is the default for
// tests and for hosts that manage their own persistence elsewhere and
// only want the vault to hold bytes in memory.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (s *MemStore) Get(name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[name]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, true, nil
}

func (s *MemStore) Put(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[name] = cp
	return nil
}

func (s *MemStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// FileStore persists a single named blob per path, one file per key,
// under a base directory. Each write uses 0600 permissions so the
// encrypted-at-rest vault is never world-readable.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory must
// already exist; FileStore does not create it.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(name string) string {
	return s.dir + string(os.PathSeparator) + name
}

func (s *FileStore) Get(name string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, xerr.Wrap(xerr.KindPersistenceUnavailable, err, "vault: failed to read store file")
	}
	return b, true, nil
}

func (s *FileStore) Put(name string, data []byte) error {
	if err := os.WriteFile(s.path(name), data, 0o600); err != nil {
		if os.IsPermission(err) {
			return xerr.Wrap(xerr.KindPersistenceFull, err, "vault: failed to write store file")
		}
		return xerr.Wrap(xerr.KindPersistenceUnavailable, err, "vault: failed to write store file")
	}
	return nil
}

func (s *FileStore) Remove(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return xerr.Wrap(xerr.KindPersistenceUnavailable, err, "vault: failed to remove store file")
	}
	return nil
}
