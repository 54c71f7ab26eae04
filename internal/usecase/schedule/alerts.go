package schedule

import (
	"context"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/usecase/reminder"
	"ramadan-bot/internal/usecase/state"
)

// AlertOutcome итог вечернего тика.
type AlertOutcome string

// Итоги вечернего тика.
const (
	// OutcomeSeasonActive сезон уже идёт, оповещать не о чем.
	OutcomeSeasonActive AlertOutcome = "seasonActive"
	// OutcomeCountdownDisabled отсчёт выключен администратором.
	OutcomeCountdownDisabled AlertOutcome = "countdownDisabled"
	// OutcomeNoChannel домашний канал не найден.
	OutcomeNoChannel AlertOutcome = "noChannel"
	// OutcomeUncertaintySent отправлено оповещение о ночи сомнения.
	OutcomeUncertaintySent AlertOutcome = "uncertaintySent"
	// OutcomeUncertaintyDuplicate оповещение о ночи сомнения сегодня уже было.
	OutcomeUncertaintyDuplicate AlertOutcome = "uncertaintyDuplicate"
	// OutcomeActivated дней не осталось, сезон запущен.
	OutcomeActivated AlertOutcome = "activated"
	// OutcomeCountdownSent отправлен обратный отсчёт.
	OutcomeCountdownSent AlertOutcome = "countdownSent"
	// OutcomeCountdownDuplicate отсчёт сегодня уже отправлялся.
	OutcomeCountdownDuplicate AlertOutcome = "countdownDuplicate"
	// OutcomeUnknownDate число оставшихся дней неизвестно.
	OutcomeUnknownDate AlertOutcome = "unknownDate"
	// OutcomeFailed отправка или запись состояния не удалась.
	OutcomeFailed AlertOutcome = "failed"
)

// SendCountdownOrUncertaintyAlert отправляет в домашний канал оповещение о ночи сомнения или обратный отсчёт.
// При нуле оставшихся дней запускает сезон.
func (o *Orchestrator) SendCountdownOrUncertaintyAlert(ctx context.Context) AlertOutcome {
	o.alertMu.Lock()
	defer o.alertMu.Unlock()

	outcome := o.sendCountdownOrUncertaintyAlert(ctx)
	o.log.Info().Str("outcome", string(outcome)).Msg("scheduler: вечерний тик обработан")
	return outcome
}

func (o *Orchestrator) sendCountdownOrUncertaintyAlert(ctx context.Context) AlertOutcome {
	st := o.store.Load(ctx)
	if st.Active {
		return OutcomeSeasonActive
	}
	if !st.CountdownEnabled {
		return OutcomeCountdownDisabled
	}
	channelID := o.homeChannel(st)
	if channelID == "" {
		return OutcomeNoChannel
	}

	if o.calendar.IsNightOfUncertainty(ctx) {
		if o.store.UncertaintyAlertSentToday(ctx) {
			return OutcomeUncertaintyDuplicate
		}
		if err := o.sender.Send(ctx, channelID, reminder.Uncertainty(o.calendar.FormattedLunarDate(ctx))); err != nil {
			o.log.Error().Err(err).Str("channel", channelID).Msg("scheduler: не удалось отправить оповещение о ночи сомнения")
			return OutcomeFailed
		}
		if err := o.store.MarkUncertaintyAlertSent(ctx); err != nil {
			o.log.Error().Err(err).Msg("scheduler: оповещение не отмечено в журнале")
		}
		return OutcomeUncertaintySent
	}

	res := o.calendar.DaysUntilTarget(ctx)
	o.log.Info().
		Int("days", res.DaysRemaining).
		Str("source", string(res.Source)).
		Bool("in_target_period", res.InTargetPeriod).
		Msg("scheduler: оценка дней до начала сезона")
	switch {
	case res.DaysRemaining == 0:
		if err := o.Activate(ctx, channelID); err != nil {
			o.log.Error().Err(err).Msg("scheduler: автоматический запуск сезона не удался")
			return OutcomeFailed
		}
		return OutcomeActivated
	case res.DaysRemaining < 0:
		return OutcomeUnknownDate
	}

	if o.store.CountdownSentToday(ctx) {
		return OutcomeCountdownDuplicate
	}
	expected := ""
	if !res.ExpectedDate.IsZero() {
		expected = res.ExpectedDate.Format(domain.DateLayout)
	}
	msg := reminder.Countdown(res.DaysRemaining, o.calendar.FormattedLunarDate(ctx), expected)
	if err := o.sender.Send(ctx, channelID, msg); err != nil {
		o.log.Error().Err(err).Str("channel", channelID).Msg("scheduler: не удалось отправить обратный отсчёт")
		return OutcomeFailed
	}
	if err := o.store.MarkCountdownSent(ctx); err != nil {
		o.log.Error().Err(err).Msg("scheduler: отсчёт не отмечен в журнале")
	}
	return OutcomeCountdownSent
}

// homeChannel выбирает первый канал домашней локации, затем канал по умолчанию.
func (o *Orchestrator) homeChannel(st domain.GlobalState) string {
	for _, ch := range st.Channels {
		if state.MatchesLocation(ch.City, ch.Country, o.cfg.HomeLocation) {
			return ch.ChannelID
		}
	}
	if o.cfg.DefaultChannelID != "" && state.MatchesLocation(st.DefaultCity, st.DefaultCountry, o.cfg.HomeLocation) {
		return o.cfg.DefaultChannelID
	}
	return ""
}

// SendDailySchedule рассылает утреннюю имсакию во все каналы, пока сезон запущен. Возвращает число отправок.
func (o *Orchestrator) SendDailySchedule(ctx context.Context) int {
	st := o.store.Load(ctx)
	if !st.Active {
		return 0
	}
	today := o.store.Now()
	lunar := o.calendar.FormattedLunarDate(ctx)
	sent := 0
	for _, ch := range st.Channels {
		logger := o.log.With().Str("channel", ch.ChannelID).Str("city", ch.City).Logger()
		times, err := o.prayers.PrayerTimes(ctx, ch, today)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: имсакия пропущена, времена недоступны")
			continue
		}
		msg := reminder.DailySchedule(ch.City, lunar, today.Format(domain.DateLayout), times)
		if err := o.sender.Send(ctx, ch.ChannelID, msg); err != nil {
			logger.Error().Err(err).Msg("scheduler: имсакия не доставлена")
			continue
		}
		sent++
	}
	return sent
}
