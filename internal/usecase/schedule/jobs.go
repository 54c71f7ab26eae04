package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
	"ramadan-bot/internal/usecase/reminder"
)

// RebuildSchedule снимает все задачи и, если сезон запущен, ставит их заново по сегодняшним временам.
// Возвращает число установленных задач.
func (o *Orchestrator) RebuildSchedule(ctx context.Context) int {
	o.rebuildMu.Lock()
	defer o.rebuildMu.Unlock()

	gen := o.cancelJobs()
	metrics.ScheduleRebuilds.Inc()

	st := o.store.Load(ctx)
	if !st.Active {
		o.log.Debug().Msg("scheduler: сезон не запущен, задачи не ставятся")
		return 0
	}

	today := o.store.Now()
	installed := 0
	for _, ch := range st.Channels {
		if ch.ChannelID == "" {
			continue
		}
		logger := o.log.With().Str("channel", ch.ChannelID).Str("city", ch.City).Logger()
		times, err := o.prayers.PrayerTimes(ctx, ch, today)
		if err != nil {
			metrics.FetchFallbacks.WithLabelValues("prayer").Inc()
			logger.Error().Err(err).Msg("scheduler: не удалось получить времена молитв, канал пропущен")
			continue
		}
		jobs, err := o.planJobs(ch, times)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: некорректные времена молитв, канал пропущен")
			continue
		}
		for _, job := range jobs {
			if err := o.install(gen, job); err != nil {
				logger.Error().Err(err).Str("type", string(job.Type)).Msg("scheduler: не удалось установить задачу")
				continue
			}
			installed++
			logger.Info().
				Str("type", string(job.Type)).
				Str("at", job.FiresAt.String()).
				Str("job_id", job.ID).
				Msg("scheduler: задача установлена")
		}
	}
	metrics.ScheduledJobs.Set(float64(installed))
	return installed
}

// planJobs вычисляет четыре задачи дня для канала.
func (o *Orchestrator) planJobs(ch domain.ChannelConfig, times domain.PrayerTimes) ([]domain.ScheduledJob, error) {
	fajr, err := domain.ParseClockTime(times.Fajr)
	if err != nil {
		return nil, fmt.Errorf("fajr: %w", err)
	}
	maghrib, err := domain.ParseClockTime(times.Maghrib)
	if err != nil {
		return nil, fmt.Errorf("maghrib: %w", err)
	}
	isha, err := domain.ParseClockTime(times.Isha)
	if err != nil {
		return nil, fmt.Errorf("isha: %w", err)
	}

	plan := []struct {
		typ    domain.MessageType
		at     domain.ClockTime
		prayer string
	}{
		{domain.MessageIftar, maghrib, times.Maghrib},
		{domain.MessageSuhoor, fajr.Add(-o.cfg.SuhoorBefore), times.Fajr},
		{domain.MessageEarlySuhoor, fajr.Add(-o.cfg.EarlySuhoorBefore), times.Fajr},
		{domain.MessageTaraweeh, isha.Add(-o.cfg.TaraweehBefore), times.Isha},
	}
	jobs := make([]domain.ScheduledJob, 0, len(plan))
	for _, p := range plan {
		jobs = append(jobs, domain.ScheduledJob{
			ID:         uuid.NewString(),
			Type:       p.typ,
			FiresAt:    p.at,
			PrayerTime: p.prayer,
			Channel:    ch.Clone(),
		})
	}
	return jobs, nil
}

func (o *Orchestrator) install(gen uint64, job domain.ScheduledJob) error {
	h, err := o.timer.ScheduleDaily(job.FiresAt, func() { o.fire(gen, job) })
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		o.timer.Cancel(h)
		return errors.New("schedule replaced during install")
	}
	o.jobs[job.ID] = installedJob{job: job, handle: h}
	return nil
}

// cancelJobs снимает все задачи напоминаний и возвращает новое поколение реестра.
func (o *Orchestrator) cancelJobs() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, j := range o.jobs {
		o.timer.Cancel(j.handle)
		delete(o.jobs, id)
	}
	o.generation++
	metrics.ScheduledJobs.Set(0)
	return o.generation
}

func (o *Orchestrator) fire(gen uint64, job domain.ScheduledJob) {
	o.mu.Lock()
	stale := gen != o.generation
	ctx := o.baseCtx
	o.mu.Unlock()
	logger := o.log.With().Str("channel", job.Channel.ChannelID).Str("type", string(job.Type)).Str("job_id", job.ID).Logger()
	if stale {
		logger.Debug().Msg("scheduler: срабатывание устаревшей задачи пропущено")
		return
	}
	err := o.deliver(ctx, job.Type, job.Channel.ChannelID, job.PrayerTime)
	switch {
	case err == nil:
		logger.Info().Msg("scheduler: напоминание отправлено")
	case errors.Is(err, ErrAlreadySent), errors.Is(err, ErrInFlight), errors.Is(err, ErrNotActive):
		logger.Debug().Err(err).Msg("scheduler: напоминание пропущено")
	default:
		logger.Error().Err(err).Msg("scheduler: напоминание не доставлено")
	}
}

// TriggerReminder вручную отправляет напоминание через тот же журнал отправок.
func (o *Orchestrator) TriggerReminder(ctx context.Context, channelID string, typ domain.MessageType) error {
	if !isScheduledType(typ) {
		return ErrUnknownType
	}
	ch, ok := o.store.ChannelConfig(ctx, channelID)
	if !ok {
		return fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotFound)
	}
	prayerTime := ""
	if times, err := o.prayers.PrayerTimes(ctx, ch, o.store.Now()); err == nil {
		prayerTime = prayerTimeFor(typ, times)
	} else {
		o.log.Warn().Err(err).Str("channel", channelID).Msg("scheduler: времена молитв недоступны, отправляем без времени")
	}
	return o.deliver(ctx, typ, channelID, prayerTime)
}

// deliver отправляет напоминание, если оно ещё не отправлялось сегодня, и отмечает отправку после успеха.
func (o *Orchestrator) deliver(ctx context.Context, typ domain.MessageType, channelID, prayerTime string) error {
	key := deliveryKey{typ: typ, channel: channelID}
	o.mu.Lock()
	if _, busy := o.inFlight[key]; busy {
		o.mu.Unlock()
		return ErrInFlight
	}
	o.inFlight[key] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.inFlight, key)
		o.mu.Unlock()
	}()

	st := o.store.Load(ctx)
	if !st.Active {
		return ErrNotActive
	}
	ch, ok := st.Channel(channelID)
	if !ok {
		return fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotFound)
	}
	if o.store.WasSentToday(ctx, typ, channelID) {
		metrics.RemindersDeduplicated.WithLabelValues(string(typ)).Inc()
		return ErrAlreadySent
	}
	claimKey, claimed, err := o.claim(ctx, key)
	if err != nil {
		return err
	}

	msg, err := reminder.Reminder(typ, reminder.Details{
		City:       ch.City,
		PrayerTime: prayerTime,
		LunarDate:  o.calendar.FormattedLunarDate(ctx),
	})
	if err != nil {
		return err
	}
	if err := o.sender.Send(ctx, channelID, msg); err != nil {
		metrics.ReminderSendErrors.WithLabelValues(string(typ)).Inc()
		if errors.Is(err, domain.ErrPartialDelivery) {
			// начало напоминания уже в канале, повтор продублировал бы его
			if markErr := o.store.MarkSent(ctx, typ, channelID); markErr != nil {
				o.log.Error().Err(markErr).Str("channel", channelID).Str("type", string(typ)).Msg("scheduler: отправка не отмечена в журнале")
			}
			return fmt.Errorf("send %s: %w", typ, err)
		}
		if claimed {
			if relErr := o.claims.Release(ctx, claimKey); relErr != nil {
				o.log.Warn().Err(relErr).Str("key", claimKey).Msg("scheduler: не удалось снять отметку отправки")
			}
		}
		return fmt.Errorf("send %s: %w", typ, err)
	}
	metrics.RemindersSent.WithLabelValues(string(typ)).Inc()
	if err := o.store.MarkSent(ctx, typ, channelID); err != nil {
		o.log.Error().Err(err).Str("channel", channelID).Str("type", string(typ)).Msg("scheduler: отправка не отмечена в журнале")
	}
	return nil
}

// claim занимает отправку в общем хранилище, если оно настроено.
// Сбой хранилища не блокирует отправку: журнал и локальные проверки уже пройдены.
func (o *Orchestrator) claim(ctx context.Context, key deliveryKey) (string, bool, error) {
	if o.claims == nil {
		return "", false, nil
	}
	claimKey := fmt.Sprintf("delivery:%s:%s:%s", o.store.Today(), key.channel, key.typ)
	ok, err := o.claims.Claim(ctx, claimKey, o.claimTTL)
	if err != nil {
		o.log.Warn().Err(err).Str("key", claimKey).Msg("scheduler: общее хранилище отметок недоступно")
		return "", false, nil
	}
	if !ok {
		metrics.RemindersDeduplicated.WithLabelValues(string(key.typ)).Inc()
		return "", false, ErrInFlight
	}
	return claimKey, true, nil
}

// Jobs возвращает установленные задачи, упорядоченные по каналу и времени.
func (o *Orchestrator) Jobs() []domain.ScheduledJob {
	o.mu.Lock()
	out := make([]domain.ScheduledJob, 0, len(o.jobs))
	for _, j := range o.jobs {
		out = append(out, j.job)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, k int) bool {
		if out[i].Channel.ChannelID != out[k].Channel.ChannelID {
			return out[i].Channel.ChannelID < out[k].Channel.ChannelID
		}
		if out[i].FiresAt != out[k].FiresAt {
			return out[i].FiresAt.Hour*60+out[i].FiresAt.Minute < out[k].FiresAt.Hour*60+out[k].FiresAt.Minute
		}
		return out[i].Type < out[k].Type
	})
	return out
}

func isScheduledType(typ domain.MessageType) bool {
	for _, t := range domain.ScheduledTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func prayerTimeFor(typ domain.MessageType, t domain.PrayerTimes) string {
	switch typ {
	case domain.MessageIftar:
		return t.Maghrib
	case domain.MessageSuhoor, domain.MessageEarlySuhoor:
		return t.Fajr
	case domain.MessageTaraweeh:
		return t.Isha
	}
	return ""
}
