// Package vault implements the master-password-protected store of
// named keys: lock/unlock state machine, add/rename/delete, and
// encrypted-at-rest persistence with export/import.
package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jpfluger/encyphrix/aead"
	"github.com/jpfluger/encyphrix/idgen"
	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/vlog"
	"github.com/jpfluger/encyphrix/xerr"
)

// Kind names the shape of a StoredKey's secret.
type Kind string

const (
	KindPassphrase Kind = "passphrase"
	KindRaw256     Kind = "raw256"
)

// minPassphraseRunes is the invariant floor on passphrase length, in
// UTF-8 code points rather than bytes.
const minPassphraseRunes = 8

// raw256Len is the fixed byte length of a raw256 secret: 32 bytes,
// suitable for direct use as an AES-256 key.
const raw256Len = 32

// StoredKey is one named secret held by the vault.
type StoredKey struct {
	ID         string
	Name       string
	Kind       Kind
	Secret     []byte
	CreatedAt  time.Time
	LastUsedAt time.Time
}

func (k StoredKey) validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return xerr.New(xerr.KindInvalidInput, "vault: key name must not be empty")
	}
	switch k.Kind {
	case KindRaw256:
		if len(k.Secret) != raw256Len {
			return xerr.New(xerr.KindInvalidInput, "vault: raw256 secret must be exactly %d bytes, got %d", raw256Len, len(k.Secret))
		}
	case KindPassphrase:
		if utf8.RuneCount(k.Secret) < minPassphraseRunes {
			return xerr.New(xerr.KindInvalidInput, "vault: passphrase secret must have at least %d code points", minPassphraseRunes)
		}
	default:
		return xerr.New(xerr.KindInvalidInput, "vault: unknown key kind %q", k.Kind)
	}
	return nil
}

func (k StoredKey) clone() StoredKey {
	cp := k
	cp.Secret = append([]byte(nil), k.Secret...)
	return cp
}

// AddKeyInput is the caller-supplied data for AddKey; ID, CreatedAt,
// and LastUsedAt are assigned by the vault.
type AddKeyInput struct {
	Name   string
	Kind   Kind
	Secret []byte
}

// KeyPatch describes an UpdateKey mutation. Nil fields are left
// unchanged.
type KeyPatch struct {
	Name       *string
	Secret     *[]byte
	LastUsedAt *time.Time
}

// ImportMode selects how ImportVault merges an imported blob with
// any currently-loaded vault.
type ImportMode int

const (
	ImportReplace ImportMode = iota
	ImportMerge
)

// Vault is the lock/unlock state machine and the integration point
// for key-backed message operations: the UI retrieves a StoredKey's
// secret and hands it to msgcrypto as the password argument.
type Vault struct {
	mu sync.Mutex

	store Store

	locked bool

	outerSalt   [16]byte
	outerParams kdf.Params
	derivedKey  kdf.Key32
	keys        []StoredKey

	lastActivity time.Time
}

// New returns a Locked vault backed by store.
func New(store Store) *Vault {
	return &Vault{store: store, locked: true}
}

// IsLocked reports the vault's current state.
func (v *Vault) IsLocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.locked
}

// Touch records activity against the idle-lock clock. Hosts that
// implement an idle-lock policy should call this on every UI
// interaction with the vault, not just mutating operations.
func (v *Vault) Touch() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastActivity = time.Now()
}

// LockIfIdle locks the vault if it is Unlocked and more than maxIdle
// has elapsed since the last recorded activity, reporting whether it
// did so. The core itself never calls this — per the idle-lock design
// note, the default policy is "never"; a host opts in by polling this
// on its own schedule.
func (v *Vault) LockIfIdle(maxIdle time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.locked {
		return false
	}
	if time.Since(v.lastActivity) < maxIdle {
		return false
	}
	v.lockLocked()
	return true
}

// InitializeVault creates an empty vault protected by pw and
// transitions to Unlocked. It fails with AlreadyExists if a vault is
// already persisted in the store.
func (v *Vault) InitializeVault(pw string) error {
	if !v.mu.TryLock() {
		return xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	_, exists, err := v.store.Get(StoreKeyName)
	if err != nil {
		return err
	}
	if exists {
		return xerr.New(xerr.KindAlreadyExists, "vault: a vault is already persisted")
	}
	if err := ValidateMasterPassword(pw); err != nil {
		return err
	}

	var salt [16]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to generate outer salt")
	}
	params := kdf.ParamsForProfile(kdf.DefaultProfile)
	key, err := kdf.Derive(pw, salt, params)
	if err != nil {
		return err
	}

	v.outerSalt = salt
	v.outerParams = params
	v.derivedKey = key
	v.keys = nil
	v.locked = false

	if err := v.persistLocked(); err != nil {
		v.lockLocked()
		return err
	}
	vlog.L().Info().Msg("vault: initialized")
	return nil
}

// Unlock derives the outer key from pw and attempts to decrypt the
// persisted payload. On success it transitions to Unlocked.
func (v *Vault) Unlock(pw string) error {
	if !v.mu.TryLock() {
		return xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	raw, exists, err := v.store.Get(StoreKeyName)
	if err != nil {
		return err
	}
	if !exists {
		return xerr.New(xerr.KindNoVault, "vault: no vault persisted")
	}

	params, salt, nonce, payload, err := parseOuterBlob(raw)
	if err != nil {
		return err
	}
	key, err := kdf.Derive(pw, salt, params)
	if err != nil {
		return err
	}
	aad := outerAAD(raw)
	plain, err := aead.Open(key, nonce, aad, payload)
	if err != nil {
		return xerr.New(xerr.KindDecryptFailed, "vault: invalid master password")
	}

	keys, err := decodePayload(plain)
	if err != nil {
		return err
	}

	v.outerSalt = salt
	v.outerParams = params
	v.derivedKey = key
	v.keys = keys
	v.locked = false
	v.lastActivity = time.Now()
	vlog.L().Info().Msg("vault: unlocked")
	return nil
}

// Lock wipes the derived key and decrypted keys from memory and
// transitions to Locked. It never fails.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockLocked()
}

func (v *Vault) lockLocked() {
	for i := range v.derivedKey {
		v.derivedKey[i] = 0
	}
	for i := range v.keys {
		for j := range v.keys[i].Secret {
			v.keys[i].Secret[j] = 0
		}
	}
	v.keys = nil
	v.locked = true
}

// AddKey validates and appends a new key, assigning a fresh id, then
// re-persists. On persistence failure the vault reverts to its
// pre-call state.
func (v *Vault) AddKey(in AddKeyInput) (StoredKey, error) {
	if !v.mu.TryLock() {
		return StoredKey{}, xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	if v.locked {
		return StoredKey{}, xerr.Sentinel(xerr.KindVaultLocked)
	}

	trimmed := strings.TrimSpace(in.Name)
	for _, k := range v.keys {
		if k.Name == trimmed {
			return StoredKey{}, xerr.New(xerr.KindDuplicateName, "vault: key name %q already exists", trimmed)
		}
	}

	now := time.Now().UTC()
	key := StoredKey{
		ID:        idgen.NewID(),
		Name:      trimmed,
		Kind:      in.Kind,
		Secret:    append([]byte(nil), in.Secret...),
		CreatedAt: now,
	}
	if err := key.validate(); err != nil {
		return StoredKey{}, err
	}

	prev := v.keys
	v.keys = append(append([]StoredKey(nil), v.keys...), key)
	if err := v.persistLocked(); err != nil {
		v.keys = prev
		return StoredKey{}, err
	}
	return key.clone(), nil
}

// GetAllKeys returns a snapshot of the current key list.
func (v *Vault) GetAllKeys() ([]StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.locked {
		return nil, xerr.Sentinel(xerr.KindVaultLocked)
	}
	out := make([]StoredKey, len(v.keys))
	for i, k := range v.keys {
		out[i] = k.clone()
	}
	return out, nil
}

// GetKey returns the key with the given id, or NotFound.
func (v *Vault) GetKey(id string) (StoredKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.locked {
		return StoredKey{}, xerr.Sentinel(xerr.KindVaultLocked)
	}
	for _, k := range v.keys {
		if k.ID == id {
			return k.clone(), nil
		}
	}
	return StoredKey{}, xerr.New(xerr.KindNotFound, "vault: no key with id %q", id)
}

// UpdateKey applies patch to the key with the given id and
// re-persists.
func (v *Vault) UpdateKey(id string, patch KeyPatch) (StoredKey, error) {
	if !v.mu.TryLock() {
		return StoredKey{}, xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	if v.locked {
		return StoredKey{}, xerr.Sentinel(xerr.KindVaultLocked)
	}

	idx := -1
	for i, k := range v.keys {
		if k.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return StoredKey{}, xerr.New(xerr.KindNotFound, "vault: no key with id %q", id)
	}

	updated := v.keys[idx].clone()
	if patch.Name != nil {
		updated.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Secret != nil {
		updated.Secret = append([]byte(nil), (*patch.Secret)...)
	}
	if patch.LastUsedAt != nil {
		updated.LastUsedAt = *patch.LastUsedAt
	}
	if err := updated.validate(); err != nil {
		return StoredKey{}, err
	}

	prev := v.keys
	next := append([]StoredKey(nil), v.keys...)
	next[idx] = updated
	v.keys = next
	if err := v.persistLocked(); err != nil {
		v.keys = prev
		return StoredKey{}, err
	}
	return updated.clone(), nil
}

// Rename is a convenience wrapper over UpdateKey for the common case
// of changing only a key's name.
func (v *Vault) Rename(id string, newName string) (StoredKey, error) {
	return v.UpdateKey(id, KeyPatch{Name: &newName})
}

// DeleteKey removes the key with the given id and re-persists.
func (v *Vault) DeleteKey(id string) error {
	if !v.mu.TryLock() {
		return xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	if v.locked {
		return xerr.Sentinel(xerr.KindVaultLocked)
	}

	idx := -1
	for i, k := range v.keys {
		if k.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return xerr.New(xerr.KindNotFound, "vault: no key with id %q", id)
	}

	prev := v.keys
	next := append([]StoredKey(nil), v.keys[:idx]...)
	next = append(next, v.keys[idx+1:]...)
	v.keys = next
	if err := v.persistLocked(); err != nil {
		v.keys = prev
		return err
	}
	return nil
}

// ChangeMasterPassword authenticates oldPw against the currently
// held outer key, then re-derives the outer key from newPw under a
// freshly generated outer salt and nonce, re-seals, and persists.
func (v *Vault) ChangeMasterPassword(oldPw, newPw string) error {
	if !v.mu.TryLock() {
		return xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	if v.locked {
		return xerr.Sentinel(xerr.KindVaultLocked)
	}

	candidate, err := kdf.Derive(oldPw, v.outerSalt, v.outerParams)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(candidate[:], v.derivedKey[:]) != 1 {
		return xerr.New(xerr.KindDecryptFailed, "vault: invalid master password")
	}
	if err := ValidateMasterPassword(newPw); err != nil {
		return err
	}

	var newSalt [16]byte
	if _, err := io.ReadFull(rand.Reader, newSalt[:]); err != nil {
		return xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to generate outer salt")
	}
	newKey, err := kdf.Derive(newPw, newSalt, v.outerParams)
	if err != nil {
		return err
	}

	prevSalt, prevKey := v.outerSalt, v.derivedKey
	v.outerSalt = newSalt
	v.derivedKey = newKey
	if err := v.persistLocked(); err != nil {
		v.outerSalt, v.derivedKey = prevSalt, prevKey
		return err
	}
	return nil
}

// ExportVault returns the persisted blob, Base64-encoded, verbatim.
func (v *Vault) ExportVault() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	raw, exists, err := v.store.Get(StoreKeyName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", xerr.New(xerr.KindNoVault, "vault: no vault persisted")
	}
	return encodeExport(raw), nil
}

// ImportVault decrypts blob under pw and loads it according to mode.
// In ImportReplace, it overwrites the current vault and transitions
// to Unlocked holding the imported keys. In ImportMerge, the vault
// must already be Unlocked; imported keys are appended with fresh
// ids, disambiguating name collisions with an " (imported)" suffix,
// and the merged set is re-persisted under the current master
// password.
func (v *Vault) ImportVault(blob string, pw string, mode ImportMode) error {
	if !v.mu.TryLock() {
		return xerr.Sentinel(xerr.KindBusy)
	}
	defer v.mu.Unlock()

	raw, err := decodeExport(blob)
	if err != nil {
		return err
	}
	params, salt, nonce, payload, err := parseOuterBlob(raw)
	if err != nil {
		return err
	}
	key, err := kdf.Derive(pw, salt, params)
	if err != nil {
		return err
	}
	plain, err := aead.Open(key, nonce, outerAAD(raw), payload)
	if err != nil {
		return xerr.New(xerr.KindDecryptFailed, "vault: invalid master password")
	}
	importedKeys, err := decodePayload(plain)
	if err != nil {
		return err
	}

	switch mode {
	case ImportReplace:
		if err := v.store.Put(StoreKeyName, raw); err != nil {
			return err
		}
		v.outerSalt = salt
		v.outerParams = params
		v.derivedKey = key
		v.keys = importedKeys
		v.locked = false
		v.lastActivity = time.Now()
		return nil

	case ImportMerge:
		if v.locked {
			return xerr.Sentinel(xerr.KindVaultLocked)
		}
		existing := make(map[string]bool, len(v.keys))
		for _, k := range v.keys {
			existing[k.Name] = true
		}
		merged := append([]StoredKey(nil), v.keys...)
		for _, k := range importedKeys {
			name := k.Name
			for existing[name] {
				name += " (imported)"
			}
			existing[name] = true
			k.ID = idgen.NewID()
			k.Name = name
			merged = append(merged, k)
		}
		prev := v.keys
		v.keys = merged
		if err := v.persistLocked(); err != nil {
			v.keys = prev
			return err
		}
		return nil

	default:
		return xerr.New(xerr.KindInvalidInput, "vault: unknown import mode")
	}
}

// ClearVault deletes the persisted blob and transitions to Locked.
func (v *Vault) ClearVault() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.store.Remove(StoreKeyName); err != nil {
		return err
	}
	v.lockLocked()
	return nil
}

// persistLocked re-serializes and re-seals the key list under the
// current outer key and persists it. Caller must hold v.mu.
func (v *Vault) persistLocked() error {
	payload, err := encodePayload(v.keys)
	if err != nil {
		return err
	}
	var nonce [aead.NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to generate outer nonce")
	}
	raw := buildOuterBlob(v.outerParams, v.outerSalt, nonce, nil)
	sealed, err := aead.Seal(v.derivedKey, nonce, outerAAD(raw), payload)
	if err != nil {
		return err
	}
	raw = buildOuterBlob(v.outerParams, v.outerSalt, nonce, sealed)
	if err := v.store.Put(StoreKeyName, raw); err != nil {
		return err
	}
	v.lastActivity = time.Now()
	return nil
}
