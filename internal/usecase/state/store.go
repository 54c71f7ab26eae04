package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

// Defaults значения, подставляемые при отсутствии сохранённого состояния.
type Defaults struct {
	City    string
	Country string
}

// Store читает и пишет единственный документ GlobalState.
// Update сериализован мьютексом только внутри процесса: два процесса
// над одним документом по-прежнему теряют запись последнего из них.
type Store struct {
	docs     domain.DocumentStore
	path     string
	defaults Defaults
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger

	mu sync.Mutex
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation задаёт зону, в которой считается «сегодня».
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New создаёт хранилище состояния поверх DocumentStore.
func New(docs domain.DocumentStore, path string, defaults Defaults, opts ...Option) *Store {
	s := &Store{
		docs:     docs,
		path:     path,
		defaults: defaults,
		loc:      time.Local,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today возвращает текущую дату процесса в формате YYYY-MM-DD.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(domain.DateLayout)
}

// Location возвращает зону, в которой считается «сегодня».
func (s *Store) Location() *time.Location { return s.loc }

// Now возвращает текущее время в зоне процесса.
func (s *Store) Now() time.Time { return s.now().In(s.loc) }

func (s *Store) defaultState() domain.GlobalState {
	return domain.GlobalState{
		CountdownEnabled: true,
		DefaultCity:      s.defaults.City,
		DefaultCountry:   s.defaults.Country,
		Channels:         []domain.ChannelConfig{},
	}
}

// Load возвращает сохранённое состояние поверх значений по умолчанию.
// Ошибка чтения или повреждённый документ дают значения по умолчанию.
func (s *Store) Load(ctx context.Context) domain.GlobalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _ := s.load(ctx)
	return st
}

// load читает документ. Ошибка возвращается только когда хранилище не ответило:
// отсутствующий или повреждённый документ заменяется значениями по умолчанию без ошибки.
func (s *Store) load(ctx context.Context) (domain.GlobalState, error) {
	st := s.defaultState()
	raw, err := s.docs.Load(ctx, s.path)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return st, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("state: документ недоступен, используем значения по умолчанию")
		return st, fmt.Errorf("load state: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("state: документ повреждён, используем значения по умолчанию")
		return st, nil
	}
	migrated := migrateLegacy(fields, s.defaults)
	normalized, err := json.Marshal(fields)
	if err != nil {
		return st, nil
	}
	if err := json.Unmarshal(normalized, &st); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("state: документ не соответствует схеме, используем значения по умолчанию")
		return s.defaultState(), nil
	}
	if st.Channels == nil {
		st.Channels = []domain.ChannelConfig{}
	}
	if migrated {
		s.log.Info().Str("path", s.path).Msg("state: документ переведён в многоканальный формат")
		if err := s.save(ctx, st); err != nil {
			s.log.Warn().Err(err).Msg("state: не удалось записать перенесённый документ")
		}
	}
	return st, nil
}

// Save записывает состояние целиком.
func (s *Store) Save(ctx context.Context, st domain.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, st)
}

func (s *Store) save(ctx context.Context, st domain.GlobalState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.docs.Save(ctx, s.path, data); err != nil {
		metrics.StateWriteErrors.Inc()
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Update выполняет чтение-изменение-запись. Если документ не прочитан или fn вернул ошибку, документ не пишется.
func (s *Store) Update(ctx context.Context, fn func(*domain.GlobalState) error) (domain.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	if err := fn(&st); err != nil {
		return st, err
	}
	if err := s.save(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}
