// internal/wallet/keystore.go
package wallet

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/99designs/keyring"
)

const keychainService = "bridgetx"

// ErrKeyNotFound is returned when no key is stored under a name.
var ErrKeyNotFound = errors.New("key not found")

// Keystore хранит приватные ключи кошельков по имени.
type Keystore interface {
	Store(name, privateKeyBase58 string) error
	Retrieve(name string) (string, error)
	Delete(name string) error
}

// KeyringStore wraps OS keychain access.
type KeyringStore struct {
	ring keyring.Keyring
}

// KeyringOptions tunes the file backend used on headless machines.
type KeyringOptions struct {
	FileDir      string
	FilePassword string
}

// OpenKeyring returns a keystore backed by the OS keychain, falling back to an
// encrypted file.
func OpenKeyring(opts KeyringOptions) (*KeyringStore, error) {
	cfg := keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         keyring.TerminalPrompt,
	}
	if opts.FilePassword != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(opts.FilePassword)
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		ring, err = keyring.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open keyring: %w", err)
		}
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func ref(name string) string {
	return keychainService + "." + name
}

func (k *KeyringStore) Store(name, privateKeyBase58 string) error {
	if _, err := NewWallet(privateKeyBase58); err != nil {
		return err
	}
	err := k.ring.Set(keyring.Item{
		Key:   ref(name),
		Data:  []byte(privateKeyBase58),
		Label: "bridgetx wallet " + name,
	})
	if err != nil {
		return fmt.Errorf("keychain store: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(name string) (string, error) {
	item, err := k.ring.Get(ref(name))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("keychain retrieve: %w", err)
	}
	return string(item.Data), nil
}

func (k *KeyringStore) Delete(name string) error {
	return k.ring.Remove(ref(name))
}

// InMemoryKeystore stores keys in memory (for tests).
type InMemoryKeystore struct {
	data map[string]string
}

func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{data: make(map[string]string)}
}

func (k *InMemoryKeystore) Store(name, privateKeyBase58 string) error {
	if _, err := NewWallet(privateKeyBase58); err != nil {
		return err
	}
	k.data[ref(name)] = privateKeyBase58
	return nil
}

func (k *InMemoryKeystore) Retrieve(name string) (string, error) {
	v, ok := k.data[ref(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(name string) error {
	delete(k.data, ref(name))
	return nil
}

// LoadFromKeystore builds a wallet from a stored key.
func LoadFromKeystore(ks Keystore, name string) (*Wallet, error) {
	key, err := ks.Retrieve(name)
	if err != nil {
		return nil, err
	}
	return NewWallet(key)
}
