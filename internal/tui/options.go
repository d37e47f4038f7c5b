package tui

import (
	"slices"
	"time"

	"github.com/hylla/sectboard/internal/domain"
)

// Profile is the read-only identity shown on the account screen.
type Profile struct {
	Name          string
	Email         string
	Phone         string
	Avatar        string
	Role          string
	EmailVerified bool
	PhoneVerified bool
	TwoFactor     bool
}

// Logger receives save and reload lifecycle events.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

type Option func(*Model)

func WithPageSizes(sizes []int, initial int) Option {
	return func(m *Model) {
		valid := make([]int, 0, len(sizes))
		for _, size := range sizes {
			if size > 0 && !slices.Contains(valid, size) {
				valid = append(valid, size)
			}
		}
		if len(valid) > 0 {
			m.pageSizes = valid
		}
		if initial > 0 {
			m.view = m.view.WithPageSize(initial)
		}
	}
}

func WithVisibleColumns(columns []domain.Field) Option {
	return func(m *Model) {
		if len(columns) == 0 {
			return
		}
		visible := []domain.Field{domain.FieldHeader}
		for _, f := range domain.AllFields() {
			if f != domain.FieldHeader && slices.Contains(columns, f) {
				visible = append(visible, f)
			}
		}
		m.view.VisibleColumns = visible
	}
}

func WithReviewers(names []string) Option {
	return func(m *Model) {
		m.reviewers = slices.Clone(names)
	}
}

// WithSaveDelays sets the simulated latency of inline and detail saves.
func WithSaveDelays(inline, detail time.Duration) Option {
	return func(m *Model) {
		m.inlineDelay = max(inline, 0)
		m.detailDelay = max(detail, 0)
	}
}

func WithProfile(p Profile) Option {
	return func(m *Model) {
		m.profile = p
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copy = write
		}
	}
}

// WithExternalChanges reloads the table whenever changes signals.
func WithExternalChanges(changes <-chan struct{}) Option {
	return func(m *Model) {
		m.changes = changes
	}
}

func WithLogger(l Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

func WithRoute(path string) Option {
	return func(m *Model) {
		m.route = path
	}
}
