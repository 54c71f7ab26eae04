package config

import (
	"errors"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.State.Backend != "file" || cfg.State.Path != "./data/state.json" {
		t.Fatalf("неожиданные настройки хранилища: %+v", cfg.State)
	}
	if cfg.Countdown.TargetMonth != 9 || cfg.Countdown.ToleranceDays != 5 || cfg.Countdown.EveDaysBefore != 1 {
		t.Fatalf("неожиданные настройки отсчёта: %+v", cfg.Countdown)
	}
	if len(cfg.Countdown.ExpectedDates) != 3 {
		t.Fatalf("ожидали 3 даты по умолчанию, получили %v", cfg.Countdown.ExpectedDates)
	}
	if len(cfg.Defaults.Home) != 2 || cfg.Defaults.Home[0] != "algiers" {
		t.Fatalf("неожиданная домашняя локация: %v", cfg.Defaults.Home)
	}
	if cfg.Reminders.SuhoorBeforeFajr != 30 || cfg.Reminders.EarlySuhoorBeforeFajr != 60 || cfg.Reminders.TaraweehBeforeIsha != 15 {
		t.Fatalf("неожиданные смещения напоминаний: %+v", cfg.Reminders)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("ALADHAN_TIMEOUT", "3s")
	t.Setenv("EXPECTED_START_DATES", "2027-02-08")
	t.Setenv("TG_BOT_TOKEN", "token")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.State.Backend != "redis" {
		t.Fatalf("ожидали redis, получили %s", cfg.State.Backend)
	}
	if cfg.Aladhan.Timeout != 3*time.Second {
		t.Fatalf("ожидали 3s, получили %s", cfg.Aladhan.Timeout)
	}
	if len(cfg.Countdown.ExpectedDates) != 1 || cfg.Countdown.ExpectedDates[0] != "2027-02-08" {
		t.Fatalf("неожиданные даты: %v", cfg.Countdown.ExpectedDates)
	}
	if cfg.Telegram.Token != "token" {
		t.Fatalf("токен не прочитан")
	}
}

func TestLocation(t *testing.T) {
	cases := map[string]string{
		"Africa/Algiers":   "Africa/Algiers",
		" africa/algiers ": "Africa/Algiers",
		"america/new york": "America/New_York",
		"UTC":              "UTC",
	}
	for raw, want := range cases {
		loc, err := AppConfig{TZ: raw}.Location()
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", raw, err)
		}
		if loc.String() != want {
			t.Fatalf("%q: ожидали %s, получили %s", raw, want, loc)
		}
	}
	for _, raw := range []string{"", "  ", "Mars/Olympus"} {
		if _, err := (AppConfig{TZ: raw}).Location(); !errors.Is(err, ErrInvalidTimezone) {
			t.Fatalf("%q: ожидали ErrInvalidTimezone, получили %v", raw, err)
		}
	}
}
