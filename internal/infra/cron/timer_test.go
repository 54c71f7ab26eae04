package cron

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
)

func TestSpec(t *testing.T) {
	if got := Spec(domain.ClockTime{Hour: 4, Minute: 5}); got != "5 4 * * *" {
		t.Fatalf("неожиданное выражение: %s", got)
	}
	if got := Spec(domain.ClockTime{}); got != "0 0 * * *" {
		t.Fatalf("неожиданное выражение для полуночи: %s", got)
	}
}

func TestScheduleAndCancel(t *testing.T) {
	timer := New(time.UTC, zerolog.Nop())
	h1, err := timer.ScheduleDaily(domain.ClockTime{Hour: 18, Minute: 30}, func() {})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := timer.ScheduleDaily(domain.ClockTime{Hour: 4}, func() {}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if timer.Entries() != 2 {
		t.Fatalf("ожидали 2 задачи, получили %d", timer.Entries())
	}
	timer.Cancel(h1)
	timer.Cancel(h1)
	if timer.Entries() != 1 {
		t.Fatalf("ожидали 1 задачу после отмены, получили %d", timer.Entries())
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	timer := New(time.UTC, zerolog.Nop())
	fn := timer.guard(domain.ClockTime{}, func() { panic("boom") })
	fn()
}

func TestStopWithoutStart(t *testing.T) {
	timer := New(nil, zerolog.Nop())
	timer.Stop()
	timer.Start()
	timer.Stop()
}
