package credential

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "taskhub"

	// tokenKey is the single key under which the bearer token is stored.
	tokenKey = "auth-token"
)

// ErrNotFound is returned when no token has been stored.
var ErrNotFound = errors.New("credential not found")

// TokenStore persists the bearer credential used for every API call.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/taskhub/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("taskhub-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the token in the system keyring.
type KeyringStore struct {
	open func() (keyring.Keyring, error)
}

// NewKeyringStore creates a TokenStore backed by the system keyring.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{open: openKeyring}
}

// NewKeyringStoreWith creates a TokenStore over an already opened keyring.
func NewKeyringStoreWith(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{
		open: func() (keyring.Keyring, error) { return ring, nil },
	}
}

// Token returns the stored token or ErrNotFound.
func (s *KeyringStore) Token() (string, error) {
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}

	return string(item.Data), nil
}

// SetToken stores the token, replacing any previous one.
func (s *KeyringStore) SetToken(token string) error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "taskhub API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	return nil
}

// Clear removes the stored token. Clearing an absent token is not an error.
func (s *KeyringStore) Clear() error {
	ring, err := s.open()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}

	return nil
}

// MemoryStore is a process-local TokenStore, used with --token and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a MemoryStore seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotFound
	}
	return s.token, nil
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
