package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
	"ramadan-bot/internal/usecase/calendar"
	"ramadan-bot/internal/usecase/prayer"
	"ramadan-bot/internal/usecase/reminder"
	"ramadan-bot/internal/usecase/state"
)

var (
	// ErrAlreadyActive сезон уже запущен.
	ErrAlreadyActive = errors.New("season already active")
	// ErrNotActive сезон не запущен.
	ErrNotActive = errors.New("season not active")
	// ErrAlreadySent напоминание этого типа уже отправлено в канал сегодня.
	ErrAlreadySent = errors.New("already sent today")
	// ErrInFlight такое же напоминание для канала отправляется прямо сейчас.
	ErrInFlight = errors.New("delivery in flight")
	// ErrUnknownType тип напоминания не планируется оркестратором.
	ErrUnknownType = errors.New("unknown reminder type")
)

// Config смещения напоминаний и время ежедневных тиков.
type Config struct {
	SuhoorBefore      time.Duration
	EarlySuhoorBefore time.Duration
	TaraweehBefore    time.Duration

	MidnightAt domain.ClockTime
	EveningAt  domain.ClockTime
	MorningAt  domain.ClockTime

	HomeLocation     []string
	DefaultChannelID string
}

// DefaultConfig значения по умолчанию.
func DefaultConfig() Config {
	return Config{
		SuhoorBefore:      30 * time.Minute,
		EarlySuhoorBefore: 60 * time.Minute,
		TaraweehBefore:    15 * time.Minute,
		MidnightAt:        domain.ClockTime{},
		EveningAt:         domain.ClockTime{Hour: 18},
		MorningAt:         domain.ClockTime{Hour: 4},
		HomeLocation:      []string{"algiers", "algeria"},
	}
}

const defaultClaimTTL = 10 * time.Minute

type installedJob struct {
	job    domain.ScheduledJob
	handle domain.JobHandle
}

type deliveryKey struct {
	typ     domain.MessageType
	channel string
}

// Orchestrator владеет установленными задачами напоминаний и единственный меняет флаг сезона.
type Orchestrator struct {
	store    *state.Store
	calendar *calendar.Engine
	prayers  *prayer.Provider
	sender   domain.Sender
	timer    domain.DailyTimer
	cfg      Config
	log      zerolog.Logger

	mu         sync.Mutex
	jobs       map[string]installedJob
	generation uint64
	inFlight   map[deliveryKey]struct{}
	ticks      []domain.JobHandle
	baseCtx    context.Context
	cancel     context.CancelFunc

	claims   domain.DeliveryClaims
	claimTTL time.Duration

	rebuildMu sync.Mutex
	alertMu   sync.Mutex
}

// Option настраивает оркестратор.
type Option func(*Orchestrator)

// WithDeliveryClaims включает межпроцессную защиту от двойной отправки.
func WithDeliveryClaims(claims domain.DeliveryClaims, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.claims = claims
		if ttl > 0 {
			o.claimTTL = ttl
		}
	}
}

// New создаёт оркестратор. Реестр задач пуст до первого RebuildSchedule.
func New(store *state.Store, cal *calendar.Engine, prayers *prayer.Provider, sender domain.Sender, timer domain.DailyTimer, cfg Config, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		calendar: cal,
		prayers:  prayers,
		sender:   sender,
		timer:    timer,
		cfg:      cfg,
		log:      logger,
		jobs:     make(map[string]installedJob),
		inFlight: make(map[deliveryKey]struct{}),
		baseCtx:  context.Background(),
		claimTTL: defaultClaimTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start ставит ежедневные тики и восстанавливает задачи, если сезон уже запущен.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return errors.New("orchestrator already started")
	}
	o.baseCtx, o.cancel = context.WithCancel(ctx)
	base := o.baseCtx
	o.mu.Unlock()

	ticks := []struct {
		name string
		at   domain.ClockTime
		fn   func()
	}{
		{"midnight", o.cfg.MidnightAt, func() { o.RebuildSchedule(base) }},
		{"evening", o.cfg.EveningAt, func() { o.SendCountdownOrUncertaintyAlert(base) }},
		{"morning", o.cfg.MorningAt, func() { o.SendDailySchedule(base) }},
	}
	for _, tick := range ticks {
		h, err := o.timer.ScheduleDaily(tick.at, tick.fn)
		if err != nil {
			o.Stop()
			return fmt.Errorf("schedule %s tick: %w", tick.name, err)
		}
		o.mu.Lock()
		o.ticks = append(o.ticks, h)
		o.mu.Unlock()
		o.log.Info().Str("tick", tick.name).Str("at", tick.at.String()).Msg("scheduler: тик установлен")
	}

	st := o.store.Load(ctx)
	metrics.SetSeasonActive(st.Active)
	if st.Active {
		o.RebuildSchedule(o.detached(ctx))
	}
	return nil
}

// Stop снимает тики и задачи напоминаний.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	for _, h := range o.ticks {
		o.timer.Cancel(h)
	}
	o.ticks = nil
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	o.cancelJobs()
	if cancel != nil {
		cancel()
	}
}

// detached отвязывает пересборку от контекста вызывающего: запрос администратора
// может оборваться, а снятые задачи должны быть установлены заново.
// После Start используется контекст оркестратора, который отменяет только Stop.
func (o *Orchestrator) detached(ctx context.Context) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return o.baseCtx
	}
	return context.WithoutCancel(ctx)
}

// Activate запускает сезон для всех каналов и гарантирует наличие конфигурации channelID.
func (o *Orchestrator) Activate(ctx context.Context, channelID string) error {
	if o.store.Load(ctx).Active {
		return ErrAlreadyActive
	}
	if channelID != "" {
		if _, err := o.store.EnsureChannel(ctx, channelID); err != nil {
			return fmt.Errorf("ensure channel: %w", err)
		}
	}
	if _, err := o.store.SetActive(ctx, true); err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	metrics.SetSeasonActive(true)
	o.log.Info().Str("channel", channelID).Msg("scheduler: сезон запущен")
	ctx = o.detached(ctx)

	if channelID != "" {
		notice := reminder.SeasonStarted(o.calendar.FormattedLunarDate(ctx))
		if err := o.sender.Send(ctx, channelID, notice); err != nil {
			o.log.Error().Err(err).Str("channel", channelID).Msg("scheduler: не удалось отправить уведомление о начале сезона")
		}
	}
	o.RebuildSchedule(ctx)
	return nil
}

// Deactivate останавливает сезон, снимает задачи и поздравляет каналы.
func (o *Orchestrator) Deactivate(ctx context.Context) error {
	if !o.store.Load(ctx).Active {
		return ErrNotActive
	}
	st, err := o.store.SetActive(ctx, false)
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	metrics.SetSeasonActive(false)
	ctx = o.detached(ctx)
	o.RebuildSchedule(ctx)
	o.log.Info().Msg("scheduler: сезон остановлен")

	notice := reminder.SeasonEnded()
	for _, ch := range st.Channels {
		if err := o.sender.Send(ctx, ch.ChannelID, notice); err != nil {
			o.log.Error().Err(err).Str("channel", ch.ChannelID).Msg("scheduler: не удалось отправить уведомление об окончании сезона")
		}
	}
	return nil
}

// ChangeCity проверяет город, сохраняет его для канала и пересобирает расписание.
func (o *Orchestrator) ChangeCity(ctx context.Context, channelID, city, country string) error {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	if channelID == "" || city == "" || country == "" {
		return domain.ErrInvalidLocation
	}
	if _, err := o.prayers.ForLocation(ctx, city, country, o.store.Now()); err != nil {
		return fmt.Errorf("check location: %w", err)
	}
	st, err := o.store.UpsertChannel(ctx, channelID, city, country)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	o.log.Info().Str("channel", channelID).Str("city", city).Str("country", country).Msg("scheduler: город канала изменён")
	if st.Active {
		o.RebuildSchedule(o.detached(ctx))
	}
	return nil
}

// SetCountdownEnabled включает или выключает вечерний отсчёт.
func (o *Orchestrator) SetCountdownEnabled(ctx context.Context, enabled bool) error {
	if _, err := o.store.SetCountdownEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("countdown flag: %w", err)
	}
	return nil
}

// RemoveChannel удаляет канал и снимает его задачи.
func (o *Orchestrator) RemoveChannel(ctx context.Context, channelID string) error {
	st, err := o.store.RemoveChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("remove channel: %w", err)
	}
	if st.Active {
		o.RebuildSchedule(o.detached(ctx))
	}
	return nil
}
