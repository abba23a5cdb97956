// Package prefs holds local user-interface state: theme and audio
// preferences with synchronous write-through persistence, and the
// onboarding step tracker. Storage failures degrade to in-memory
// operation; they never surface to callers.
package prefs

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mikol1980/aitutor/pkg/store"
)

// Theme selects the UI color scheme. ThemeSystem tracks the OS-level
// appearance signal.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Appearance is a resolved light/dark value.
type Appearance string

const (
	AppearanceLight Appearance = "light"
	AppearanceDark  Appearance = "dark"
)

// Signal exposes the OS appearance and its changes. Subscribe returns a
// cancel function that stops delivery.
type Signal interface {
	Current() Appearance
	Subscribe(fn func(Appearance)) (cancel func())
}

// Preferences is the persisted preference record.
type Preferences struct {
	Theme        Theme
	AudioEnabled bool
}

// Defaults returns the documented default preferences.
func Defaults() Preferences {
	return Preferences{Theme: ThemeSystem, AudioEnabled: true}
}

const (
	keyTheme        = "theme"
	keyAudioEnabled = "audio_enabled"
)

// StoreOption configures a preference Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store owns the preference record. It loads once at construction, writes
// through synchronously on every change, and tracks the OS appearance
// signal only while the theme is ThemeSystem.
type Store struct {
	scope  store.Scope
	signal Signal
	log    *slog.Logger

	mu       sync.Mutex
	prefs    Preferences
	unsub    func()
	onChange []func(Preferences, Appearance)
}

// New creates a Store, loading persisted preferences with graceful
// fallback to defaults when storage is unavailable or malformed.
func New(ctx context.Context, scope store.Scope, signal Signal, opts ...StoreOption) *Store {
	s := &Store{scope: scope, signal: signal, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.prefs = s.load(ctx)
	s.track()
	return s
}

// Preferences returns the current preference record.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Set writes prefs through to storage, then updates in-memory state and
// re-evaluates signal tracking.
func (s *Store) Set(ctx context.Context, p Preferences) {
	s.persist(ctx, p)
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
	s.track()
	s.fire()
}

// Reset restores and persists the documented defaults.
func (s *Store) Reset(ctx context.Context) {
	s.Set(ctx, Defaults())
}

// Effective resolves the theme to a concrete appearance. ThemeSystem
// follows the signal; without a signal it defaults to light.
func (s *Store) Effective() Appearance {
	s.mu.Lock()
	theme := s.prefs.Theme
	s.mu.Unlock()
	switch theme {
	case ThemeDark:
		return AppearanceDark
	case ThemeLight:
		return AppearanceLight
	default:
		if s.signal != nil {
			return s.signal.Current()
		}
		return AppearanceLight
	}
}

// OnChange registers fn to run after every preference change and after
// every tracked signal change, with the record and resolved appearance.
func (s *Store) OnChange(fn func(Preferences, Appearance)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context) Preferences {
	p := Defaults()
	theme, err := s.scope.Get(ctx, keyTheme)
	if err == nil {
		switch Theme(theme) {
		case ThemeSystem, ThemeLight, ThemeDark:
			p.Theme = Theme(theme)
		default:
			s.log.Warn("ignoring malformed stored theme", "value", theme)
		}
	}
	audio, err := s.scope.Get(ctx, keyAudioEnabled)
	if err == nil {
		if v, perr := strconv.ParseBool(audio); perr == nil {
			p.AudioEnabled = v
		} else {
			s.log.Warn("ignoring malformed stored audio flag", "value", audio)
		}
	}
	return p
}

func (s *Store) persist(ctx context.Context, p Preferences) {
	if err := s.scope.Set(ctx, keyTheme, string(p.Theme)); err != nil {
		s.log.Warn("preferences not persisted, continuing in memory", "error", err)
		return
	}
	if err := s.scope.Set(ctx, keyAudioEnabled, strconv.FormatBool(p.AudioEnabled)); err != nil {
		s.log.Warn("preferences not persisted, continuing in memory", "error", err)
	}
}

// track subscribes to the appearance signal while theme is system and
// drops the subscription the moment an explicit theme is chosen.
func (s *Store) track() {
	s.mu.Lock()
	system := s.prefs.Theme == ThemeSystem
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if !system || s.signal == nil {
		return
	}
	cancel := s.signal.Subscribe(func(Appearance) { s.fire() })
	s.mu.Lock()
	s.unsub = cancel
	s.mu.Unlock()
}

func (s *Store) fire() {
	s.mu.Lock()
	fns := make([]func(Preferences, Appearance), len(s.onChange))
	copy(fns, s.onChange)
	p := s.prefs
	s.mu.Unlock()
	eff := s.Effective()
	for _, fn := range fns {
		fn(p, eff)
	}
}
