// Package credential owns the API key lifecycle: lazy load from a secret
// store, caching, invalidation after updates and the interactive prompt used
// when nothing is stored.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MalithGihan/codediagram-service/internal/store"
)

const DefaultKeyName = "sambanovaApiKey"

var (
	// ErrNotConfigured means no key is stored and the prompt was declined.
	ErrNotConfigured = errors.New("credential: API key is not configured")
	ErrStore         = errors.New("credential: secure storage failure")
)

// Prompter asks the user for a key. An empty answer means declined.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

type PromptFunc func(ctx context.Context) (string, error)

func (f PromptFunc) Prompt(ctx context.Context) (string, error) { return f(ctx) }

// Decline is a Prompter for non-interactive hosts.
var Decline Prompter = PromptFunc(func(context.Context) (string, error) { return "", nil })

type state int

const (
	stale state = iota
	loaded
)

// Manager caches the key read from Store. All methods are safe for concurrent use.
type Manager struct {
	store  store.SecretStore
	key    string
	prompt Prompter

	mu    sync.Mutex
	state state
	value string
}

func NewManager(s store.SecretStore, keyName string, p Prompter) *Manager {
	if keyName == "" {
		keyName = DefaultKeyName
	}
	if p == nil {
		p = Decline
	}
	return &Manager{store: s, key: keyName, prompt: p}
}

func (m *Manager) KeyName() string { return m.key }

type prompterKey struct{}

// WithPrompter attaches a Prompter that Token prefers over the Manager's own.
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterKey{}, p)
}

func prompterFrom(ctx context.Context) Prompter {
	p, _ := ctx.Value(prompterKey{}).(Prompter)
	return p
}

// Token returns the cached key, loading it on first use. When the store is
// empty the Prompter is asked and an accepted answer is persisted.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == loaded && m.value != "" {
		return m.value, nil
	}
	if err := m.loadLocked(ctx); err != nil {
		return "", err
	}
	if m.value != "" {
		return m.value, nil
	}

	p := prompterFrom(ctx)
	if p == nil {
		p = m.prompt
	}
	answer, err := p.Prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrNotConfigured
	}
	if err := m.updateLocked(ctx, answer); err != nil {
		return "", err
	}
	if err := m.loadLocked(ctx); err != nil {
		return "", err
	}
	return m.value, nil
}

// Update persists a new key. The cache is marked stale and reloaded from the
// store on next use.
func (m *Manager) Update(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: empty key", ErrNotConfigured)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(ctx, value)
}

// Clear removes the stored key; the next Token call prompts again.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, m.key); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStore, err)
	}
	m.state = stale
	m.value = ""
	return nil
}

// Configured reports whether a key is present in the store, without prompting.
func (m *Manager) Configured(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == loaded && m.value != "" {
		return true, nil
	}
	if err := m.loadLocked(ctx); err != nil {
		return false, err
	}
	return m.value != "", nil
}

func (m *Manager) loadLocked(ctx context.Context) error {
	v, err := m.store.Get(ctx, m.key)
	if err != nil {
		return fmt.Errorf("%w: read: %v", ErrStore, err)
	}
	m.value = v
	m.state = loaded
	return nil
}

func (m *Manager) updateLocked(ctx context.Context, value string) error {
	if err := m.store.Store(ctx, m.key, value); err != nil {
		return fmt.Errorf("%w: write: %v", ErrStore, err)
	}
	m.state = stale
	m.value = ""
	return nil
}
