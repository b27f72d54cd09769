package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/schoolhub-dev/schoolhub/internal/session"
)

const (
	service = "schoolhub-cli"
)

// ErrNoSession is returned when nothing is cached for a server
var ErrNoSession = errors.New("not authenticated. Please run 'schoolhub login' first")

// SessionCache persists the signed-in session per server
type SessionCache interface {
	SaveSession(serverURL string, sess *session.Session) error
	LoadSession(serverURL string) (*session.Session, error)
	DeleteSession(serverURL string) error
}

// Keyring stores sessions in the OS keychain/credential manager
type Keyring struct{}

// Default is the keyring-backed cache used by the CLI
var Default SessionCache = Keyring{}

// getKeyringKey returns a unique key for storing sessions per server
func getKeyringKey(serverURL string) string {
	return fmt.Sprintf("session-%s", serverURL)
}

// SaveSession persists the session as JSON
func (Keyring) SaveSession(serverURL string, sess *session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(service, getKeyringKey(serverURL), string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the cached session or ErrNoSession
func (Keyring) LoadSession(serverURL string) (*session.Session, error) {
	data, err := keyring.Get(service, getKeyringKey(serverURL))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the cached session
func (Keyring) DeleteSession(serverURL string) error {
	if err := keyring.Delete(service, getKeyringKey(serverURL)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
