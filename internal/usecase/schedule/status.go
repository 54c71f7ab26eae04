package schedule

import (
	"context"
	"fmt"

	"ramadan-bot/internal/domain"
)

// ChannelStatus состояние одного канала.
type ChannelStatus struct {
	ChannelID    string                        `json:"channelId"`
	City         string                        `json:"city"`
	Country      string                        `json:"country"`
	LastSentDate map[domain.MessageType]string `json:"lastSentDate,omitempty"`
}

// JobStatus установленная задача.
type JobStatus struct {
	ID        string             `json:"id"`
	Type      domain.MessageType `json:"type"`
	ChannelID string             `json:"channelId"`
	FiresAt   string             `json:"firesAt"`
}

// Status сводка для административного API.
type Status struct {
	Active           bool            `json:"active"`
	CountdownEnabled bool            `json:"countdownEnabled"`
	DefaultCity      string          `json:"defaultCity"`
	DefaultCountry   string          `json:"defaultCountry"`
	Today            string          `json:"today"`
	LunarDate        string          `json:"lunarDate"`
	Channels         []ChannelStatus `json:"channels"`
	Jobs             []JobStatus     `json:"jobs"`
}

// Status собирает текущее состояние сезона, каналов и задач.
func (o *Orchestrator) Status(ctx context.Context) Status {
	st := o.store.Load(ctx)
	out := Status{
		Active:           st.Active,
		CountdownEnabled: st.CountdownEnabled,
		DefaultCity:      st.DefaultCity,
		DefaultCountry:   st.DefaultCountry,
		Today:            o.store.Today(),
		LunarDate:        o.calendar.FormattedLunarDate(ctx),
		Channels:         make([]ChannelStatus, 0, len(st.Channels)),
		Jobs:             []JobStatus{},
	}
	for _, ch := range st.Channels {
		out.Channels = append(out.Channels, ChannelStatus{
			ChannelID:    ch.ChannelID,
			City:         ch.City,
			Country:      ch.Country,
			LastSentDate: ch.LastSentDate,
		})
	}
	for _, j := range o.Jobs() {
		out.Jobs = append(out.Jobs, JobStatus{
			ID:        j.ID,
			Type:      j.Type,
			ChannelID: j.Channel.ChannelID,
			FiresAt:   j.FiresAt.String(),
		})
	}
	return out
}

// ChannelTimes возвращает сегодняшние времена молитв канала.
func (o *Orchestrator) ChannelTimes(ctx context.Context, channelID string) (domain.PrayerTimes, error) {
	ch, ok := o.store.ChannelConfig(ctx, channelID)
	if !ok {
		return domain.PrayerTimes{}, fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotFound)
	}
	return o.prayers.PrayerTimes(ctx, ch, o.store.Now())
}

// Countdown возвращает текущую оценку дней до начала сезона.
func (o *Orchestrator) Countdown(ctx context.Context) domain.CountdownResult {
	return o.calendar.DaysUntilTarget(ctx)
}
