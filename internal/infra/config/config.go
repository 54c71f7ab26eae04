package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv     string `envconfig:"APP_ENV" default:"dev"`
	TZ         string `envconfig:"TZ" default:"Africa/Algiers"`
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:":8080"`
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	Telegram struct {
		Token   string  `envconfig:"TG_BOT_TOKEN"`
		SendRPS float64 `envconfig:"TG_SEND_RPS" default:"20"`
	} `envconfig:""`

	State struct {
		Backend string `envconfig:"STATE_BACKEND" default:"file"`
		Path    string `envconfig:"STATE_PATH" default:"./data/state.json"`
	} `envconfig:""`

	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"ramadan-bot:"`

	PGDSN string `envconfig:"PG_DSN"`

	Aladhan struct {
		BaseURL string        `envconfig:"ALADHAN_BASE_URL" default:"https://api.aladhan.com/v1"`
		Timeout time.Duration `envconfig:"ALADHAN_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Defaults struct {
		City      string   `envconfig:"DEFAULT_CITY" default:"Algiers"`
		Country   string   `envconfig:"DEFAULT_COUNTRY" default:"Algeria"`
		ChannelID string   `envconfig:"DEFAULT_CHANNEL_ID"`
		Home      []string `envconfig:"HOME_LOCATION" default:"algiers,algeria"`
	} `envconfig:""`

	Countdown struct {
		TargetMonth   int      `envconfig:"TARGET_LUNAR_MONTH" default:"9"`
		EveDaysBefore int      `envconfig:"EVE_DAYS_BEFORE" default:"1"`
		ToleranceDays int      `envconfig:"ARBITRATION_TOLERANCE_DAYS" default:"5"`
		ExpectedDates []string `envconfig:"EXPECTED_START_DATES" default:"2025-03-01,2026-02-18,2027-02-08"`
	} `envconfig:""`

	Reminders struct {
		SuhoorBeforeFajr      int `envconfig:"SUHOOR_MINUTES_BEFORE_FAJR" default:"30"`
		EarlySuhoorBeforeFajr int `envconfig:"EARLY_SUHOOR_MINUTES_BEFORE_FAJR" default:"60"`
		TaraweehBeforeIsha    int `envconfig:"TARAWEEH_MINUTES_BEFORE_ISHA" default:"15"`
	} `envconfig:""`

	Ticks struct {
		Midnight string `envconfig:"MIDNIGHT_TICK_AT" default:"00:00"`
		Evening  string `envconfig:"EVENING_TICK_AT" default:"18:00"`
		Morning  string `envconfig:"MORNING_TICK_AT" default:"04:00"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения и возвращает ошибку вместо завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
