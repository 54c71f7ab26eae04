package cron

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
)

// Timer реализует domain.DailyTimer поверх robfig/cron.
type Timer struct {
	c   *cron.Cron
	log zerolog.Logger

	mu      sync.Mutex
	started bool
}

// New создаёт таймер в заданной зоне.
func New(loc *time.Location, logger zerolog.Logger) *Timer {
	if loc == nil {
		loc = time.Local
	}
	return &Timer{c: cron.New(cron.WithLocation(loc)), log: logger}
}

// Spec возвращает cron-выражение для ежедневного срабатывания.
func Spec(at domain.ClockTime) string {
	return fmt.Sprintf("%d %d * * *", at.Minute, at.Hour)
}

// ScheduleDaily регистрирует ежедневный вызов fn в указанное время.
func (t *Timer) ScheduleDaily(at domain.ClockTime, fn func()) (domain.JobHandle, error) {
	id, err := t.c.AddFunc(Spec(at), t.guard(at, fn))
	if err != nil {
		return 0, fmt.Errorf("cron add %s: %w", at, err)
	}
	return domain.JobHandle(id), nil
}

// Cancel снимает задачу. Неизвестный идентификатор игнорируется.
func (t *Timer) Cancel(h domain.JobHandle) {
	t.c.Remove(cron.EntryID(h))
}

// Start запускает планировщик один раз.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.c.Start()
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (t *Timer) Stop() {
	t.mu.Lock()
	started := t.started
	t.started = false
	t.mu.Unlock()
	if !started {
		return
	}
	<-t.c.Stop().Done()
}

// Entries возвращает число зарегистрированных задач.
func (t *Timer) Entries() int {
	return len(t.c.Entries())
}

func (t *Timer) guard(at domain.ClockTime, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				t.log.Error().Interface("panic", r).Str("at", at.String()).Msg("cron: задача завершилась паникой")
			}
		}()
		fn()
	}
}
