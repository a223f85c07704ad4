package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/diagnobuddy/backend/internal/model/chat"
)

// Storage keys, shared with the browser client.
const (
	KeySessionID      = "sessionId"
	KeyExpirationTime = "expirationTime"
)

// Storage is a flat string key/value store.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage keeps values for the life of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage persists values as a JSON object so a token outlives one run of
// the terminal client.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage stores values at path. The file is created on first write.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	return v, ok
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.save(values)
}

func (f *FileStorage) load() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return values, nil
}

func (f *FileStorage) save(values map[string]string) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

// TokenCache holds the session token and its expiry in a Storage. There is no
// refresh; an expired token is replaced by issuing a new one.
type TokenCache struct {
	storage Storage
	now     func() time.Time
}

// NewTokenCache wraps storage.
func NewTokenCache(storage Storage) *TokenCache {
	return &TokenCache{storage: storage, now: time.Now}
}

// Get returns the cached token. It reports false when either key is missing
// or the expiry is unreadable.
func (c *TokenCache) Get() (chat.SessionToken, bool) {
	token, ok := c.storage.Get(KeySessionID)
	if !ok || token == "" {
		return chat.SessionToken{}, false
	}
	raw, ok := c.storage.Get(KeyExpirationTime)
	if !ok {
		return chat.SessionToken{}, false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return chat.SessionToken{}, false
	}
	return chat.SessionToken{Token: token, ExpiresAt: time.UnixMilli(millis)}, true
}

// Put stores token with an expiry ttl from now.
func (c *TokenCache) Put(token string, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl)
	if err := c.storage.Set(KeySessionID, token); err != nil {
		return err
	}
	return c.storage.Set(KeyExpirationTime, strconv.FormatInt(expiresAt.UnixMilli(), 10))
}

// IsExpired reports true when there is no token or its expiry has passed.
func (c *TokenCache) IsExpired() bool {
	token, ok := c.Get()
	if !ok {
		return true
	}
	return token.Expired(c.now())
}

// Clear forgets the cached token.
func (c *TokenCache) Clear() error {
	if err := c.storage.Delete(KeySessionID); err != nil {
		return err
	}
	return c.storage.Delete(KeyExpirationTime)
}
