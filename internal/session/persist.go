package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reina/internal/log"
)

// Persister stores the session outside the process so separate CLI
// invocations share one login. Saving a zero Session removes the record.
type Persister interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
}

// persistTimeout bounds each write-through save.
const persistTimeout = 5 * time.Second

// Bind loads the persisted session into store and writes every later change
// through to p. Save failures are logged; the in-memory session stays
// authoritative. The returned function stops the write-through.
//
// Several processes may share p. Store.Reload picks up what they wrote, and
// clearing the session removes the record only while it still holds the
// session this process last read or wrote.
func Bind(ctx context.Context, store *MemoryStore, p Persister, logger *log.Logger) (func(), error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSession)

	s, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	store.load(s)
	logger.Debug("Loaded persisted session", "authenticated", s.Authenticated())

	b := &binding{p: p, logger: logger, known: s}
	unsubscribe := store.Subscribe(b.save)
	store.setReloader(b.reload)
	return func() {
		unsubscribe()
		store.setReloader(nil)
	}, nil
}

type binding struct {
	p      Persister
	logger *log.Logger

	mu    sync.Mutex
	known Session // last session read from or written to p
}

func (b *binding) save(s Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.IsZero() {
		stored, err := b.p.Load(ctx)
		if err == nil && !stored.IsZero() && stored != b.known {
			b.logger.Info("Persisted session was replaced by another process, keeping it",
				log.FieldOperation, log.OpPersist)
			b.known = stored
			return
		}
	}

	if err := b.p.Save(ctx, s); err != nil {
		b.logger.Error("Failed to persist session",
			log.FieldOperation, log.OpPersist,
			log.FieldError, err)
		return
	}
	b.known = s
}

func (b *binding) reload(ctx context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.p.Load(ctx)
	if err != nil {
		b.logger.Warn("Failed to reload persisted session",
			log.FieldOperation, log.OpPersist,
			log.FieldError, err)
		return Session{}, err
	}
	b.known = s
	return s, nil
}
