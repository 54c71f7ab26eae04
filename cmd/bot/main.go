package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ramadan-bot/internal/adapters/aladhan"
	"ramadan-bot/internal/adapters/docstore"
	"ramadan-bot/internal/adapters/httpapi"
	"ramadan-bot/internal/adapters/telegram"
	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/cache"
	"ramadan-bot/internal/infra/config"
	"ramadan-bot/internal/infra/cron"
	"ramadan-bot/internal/infra/db"
	httpinfra "ramadan-bot/internal/infra/http"
	applog "ramadan-bot/internal/infra/log"
	"ramadan-bot/internal/infra/metrics"
	"ramadan-bot/internal/usecase/calendar"
	"ramadan-bot/internal/usecase/prayer"
	"ramadan-bot/internal/usecase/schedule"
	"ramadan-bot/internal/usecase/state"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("bot: неверная временная зона")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, claims, closeDocs, err := openDocuments(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.State.Backend).Msg("bot: хранилище состояния недоступно")
	}
	defer closeDocs()

	store := state.New(docs, cfg.State.Path, state.Defaults{City: cfg.Defaults.City, Country: cfg.Defaults.Country},
		state.WithLocation(loc),
		state.WithLogger(applog.Component(logger, "state")),
	)

	aladhanClient, err := aladhan.New(cfg.Aladhan.BaseURL, aladhan.WithTimeout(cfg.Aladhan.Timeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: неверный адрес aladhan")
	}

	expected, err := calendar.ParseExpectedDates(cfg.Countdown.ExpectedDates)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: неверные ожидаемые даты начала сезона")
	}
	engine := calendar.New(aladhanClient, calendar.Config{
		TargetMonth:   cfg.Countdown.TargetMonth,
		EveOffset:     cfg.Countdown.EveDaysBefore,
		Tolerance:     cfg.Countdown.ToleranceDays,
		ExpectedDates: expected,
	},
		calendar.WithLocation(loc),
		calendar.WithLogger(applog.Component(logger, "calendar")),
	)
	prayers := prayer.NewProvider(aladhanClient, store, applog.Component(logger, "prayer"))

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI, cfg.Telegram.SendRPS, applog.Component(logger, "telegram"))

	orchCfg, err := orchestratorConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot: неверные настройки расписания")
	}
	timer := cron.New(loc, applog.Component(logger, "cron"))
	var orchOpts []schedule.Option
	if claims != nil {
		orchOpts = append(orchOpts, schedule.WithDeliveryClaims(claims, 0))
	}
	orchestrator := schedule.New(store, engine, prayers, sender, timer, orchCfg, applog.Component(logger, "scheduler"), orchOpts...)
	if err := orchestrator.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bot: не удалось запустить оркестратор")
	}
	timer.Start()

	server := httpinfra.NewServer(applog.Component(logger, "http"), registry)
	httpapi.New(orchestrator, applog.Component(logger, "api")).Mount(server.Router, cfg.AdminToken)
	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("bot: http сервер остановлен")
			stop()
		}
	}()

	logger.Info().Str("tz", loc.String()).Str("backend", cfg.State.Backend).Msg("bot: запущен")
	<-ctx.Done()
	logger.Info().Msg("bot: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	orchestrator.Stop()
	timer.Stop()
}

// openDocuments выбирает хранилище документа состояния по STATE_BACKEND.
// Для redis дополнительно возвращаются общие отметки отправок.
func openDocuments(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (domain.DocumentStore, domain.DeliveryClaims, func(), error) {
	noop := func() {}
	switch cfg.State.Backend {
	case "file", "":
		return docstore.NewFile(), nil, noop, nil
	case "memory":
		logger.Warn().Msg("bot: состояние хранится в памяти и пропадёт при перезапуске")
		return docstore.NewMemory(), nil, noop, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		docs := docstore.NewRedis(client, cfg.RedisKeyPrefix)
		claims := cache.NewRedisClaims(client, cfg.RedisKeyPrefix)
		return docs, claims, func() { _ = client.Close() }, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, noop, err
		}
		docs, err := docstore.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		return docs, nil, pool.Close, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
}

func orchestratorConfig(cfg config.AppConfig) (schedule.Config, error) {
	out := schedule.DefaultConfig()
	out.SuhoorBefore = time.Duration(cfg.Reminders.SuhoorBeforeFajr) * time.Minute
	out.EarlySuhoorBefore = time.Duration(cfg.Reminders.EarlySuhoorBeforeFajr) * time.Minute
	out.TaraweehBefore = time.Duration(cfg.Reminders.TaraweehBeforeIsha) * time.Minute
	out.HomeLocation = cfg.Defaults.Home
	out.DefaultChannelID = cfg.Defaults.ChannelID

	ticks := []struct {
		raw string
		dst *domain.ClockTime
	}{
		{cfg.Ticks.Midnight, &out.MidnightAt},
		{cfg.Ticks.Evening, &out.EveningAt},
		{cfg.Ticks.Morning, &out.MorningAt},
	}
	for _, tick := range ticks {
		at, err := domain.ParseClockTime(tick.raw)
		if err != nil {
			return schedule.Config{}, fmt.Errorf("tick %q: %w", tick.raw, err)
		}
		*tick.dst = at
	}
	return out, nil
}
