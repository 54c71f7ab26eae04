package state

import (
	"context"
	"errors"
	"strings"

	"ramadan-bot/internal/domain"
)

// ErrUnknownChannel канал отсутствует в сохранённой конфигурации.
var ErrUnknownChannel = errors.New("unknown channel")

// WasSentToday сообщает, отмечена ли отправка типа в канал за сегодня.
func (s *Store) WasSentToday(ctx context.Context, typ domain.MessageType, channelID string) bool {
	st := s.Load(ctx)
	ch, ok := st.Channel(channelID)
	if !ok {
		return false
	}
	return ch.LastSentDate[typ] == s.Today()
}

// MarkSent отмечает отправку за сегодня и сразу сохраняет документ.
func (s *Store) MarkSent(ctx context.Context, typ domain.MessageType, channelID string) error {
	today := s.Today()
	_, err := s.Update(ctx, func(st *domain.GlobalState) error {
		ch, ok := st.Channel(channelID)
		if !ok {
			return ErrUnknownChannel
		}
		if ch.LastSentDate == nil {
			ch.LastSentDate = make(map[domain.MessageType]string)
		}
		ch.LastSentDate[typ] = today
		return nil
	})
	return err
}

// CountdownSentToday сообщает, отправлялся ли сегодня отсчёт.
func (s *Store) CountdownSentToday(ctx context.Context) bool {
	return s.Load(ctx).LastCountdownSentDate == s.Today()
}

// MarkCountdownSent отмечает отправку отсчёта.
func (s *Store) MarkCountdownSent(ctx context.Context) error {
	today := s.Today()
	_, err := s.Update(ctx, func(st *domain.GlobalState) error {
		st.LastCountdownSentDate = today
		return nil
	})
	return err
}

// UncertaintyAlertSentToday сообщает, отправлялось ли сегодня оповещение о ночи сомнения.
func (s *Store) UncertaintyAlertSentToday(ctx context.Context) bool {
	return s.Load(ctx).LastUncertaintyAlertSentDate == s.Today()
}

// MarkUncertaintyAlertSent отмечает отправку оповещения о ночи сомнения.
func (s *Store) MarkUncertaintyAlertSent(ctx context.Context) error {
	today := s.Today()
	_, err := s.Update(ctx, func(st *domain.GlobalState) error {
		st.LastUncertaintyAlertSentDate = today
		return nil
	})
	return err
}

// ChannelConfig возвращает копию конфигурации канала.
func (s *Store) ChannelConfig(ctx context.Context, channelID string) (domain.ChannelConfig, bool) {
	st := s.Load(ctx)
	ch, ok := st.Channel(channelID)
	if !ok {
		return domain.ChannelConfig{}, false
	}
	return ch.Clone(), true
}

// EnsureChannel создаёт конфигурацию канала с локацией по умолчанию, если её нет.
func (s *Store) EnsureChannel(ctx context.Context, channelID string) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		if _, ok := st.Channel(channelID); ok {
			return nil
		}
		st.Channels = append(st.Channels, domain.ChannelConfig{
			ChannelID: channelID,
			City:      st.DefaultCity,
			Country:   st.DefaultCountry,
		})
		return nil
	})
}

// UpsertChannel задаёт город канала и сбрасывает кэш времён молитв.
func (s *Store) UpsertChannel(ctx context.Context, channelID, city, country string) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		if ch, ok := st.Channel(channelID); ok {
			ch.City = city
			ch.Country = country
			ch.CachedPrayerTimes = nil
			ch.CachedPrayerDate = ""
			return nil
		}
		st.Channels = append(st.Channels, domain.ChannelConfig{
			ChannelID: channelID,
			City:      city,
			Country:   country,
		})
		return nil
	})
}

// RemoveChannel удаляет конфигурацию канала.
func (s *Store) RemoveChannel(ctx context.Context, channelID string) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		kept := st.Channels[:0]
		found := false
		for _, ch := range st.Channels {
			if ch.ChannelID == channelID {
				found = true
				continue
			}
			kept = append(kept, ch)
		}
		if !found {
			return ErrUnknownChannel
		}
		st.Channels = kept
		return nil
	})
}

// SetDefaultLocation меняет запасной город.
func (s *Store) SetDefaultLocation(ctx context.Context, city, country string) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		st.DefaultCity = city
		st.DefaultCountry = country
		return nil
	})
}

// SetCountdownEnabled включает или выключает вечерний отсчёт.
func (s *Store) SetCountdownEnabled(ctx context.Context, enabled bool) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		st.CountdownEnabled = enabled
		return nil
	})
}

// SetActive меняет глобальный флаг сезона. Вызывается только оркестратором.
func (s *Store) SetActive(ctx context.Context, active bool) (domain.GlobalState, error) {
	return s.Update(ctx, func(st *domain.GlobalState) error {
		st.Active = active
		return nil
	})
}

// CachePrayerTimes сохраняет времена молитв канала за дату.
func (s *Store) CachePrayerTimes(ctx context.Context, channelID, date string, times domain.PrayerTimes) error {
	_, err := s.Update(ctx, func(st *domain.GlobalState) error {
		ch, ok := st.Channel(channelID)
		if !ok {
			return ErrUnknownChannel
		}
		ch.CachedPrayerTimes = &times
		ch.CachedPrayerDate = date
		return nil
	})
	return err
}

// MatchesLocation сообщает, содержит ли город или страна одну из подстрок без учёта регистра.
func MatchesLocation(city, country string, needles []string) bool {
	city = strings.ToLower(city)
	country = strings.ToLower(country)
	for _, n := range needles {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if strings.Contains(city, n) || strings.Contains(country, n) {
			return true
		}
	}
	return false
}
