package domain

import (
	"fmt"
	"time"
)

// DateLayout формат календарной даты в сохранённом состоянии.
const DateLayout = "2006-01-02"

// MessageType тип ежедневного напоминания.
type MessageType string

const (
	MessageIftar       MessageType = "iftar"
	MessageSuhoor      MessageType = "suhoor"
	MessageEarlySuhoor MessageType = "earlySuhoor"
	MessageTaraweeh    MessageType = "taraweeh"
	MessageIftarImage  MessageType = "iftarImage"
)

// ScheduledTypes перечисляет типы, для которых ставятся ежедневные задачи.
var ScheduledTypes = []MessageType{MessageIftar, MessageSuhoor, MessageEarlySuhoor, MessageTaraweeh}

// Valid сообщает, ведётся ли для типа отметка в журнале отправок.
func (t MessageType) Valid() bool {
	switch t {
	case MessageIftar, MessageSuhoor, MessageEarlySuhoor, MessageTaraweeh, MessageIftarImage:
		return true
	}
	return false
}

// GlobalState единственный сохраняемый документ состояния.
type GlobalState struct {
	Active                       bool            `json:"active"`
	CountdownEnabled             bool            `json:"countdownEnabled"`
	DefaultCity                  string          `json:"defaultCity"`
	DefaultCountry               string          `json:"defaultCountry"`
	LastCountdownSentDate        string          `json:"lastCountdownSentDate,omitempty"`
	LastUncertaintyAlertSentDate string          `json:"lastUncertaintyAlertSentDate,omitempty"`
	Channels                     []ChannelConfig `json:"channels"`
}

// Channel возвращает первую конфигурацию с указанным идентификатором.
func (s *GlobalState) Channel(channelID string) (*ChannelConfig, bool) {
	for i := range s.Channels {
		if s.Channels[i].ChannelID == channelID {
			return &s.Channels[i], true
		}
	}
	return nil, false
}

// Clone возвращает копию, не разделяющую срезы и карты с исходником.
func (s GlobalState) Clone() GlobalState {
	out := s
	out.Channels = make([]ChannelConfig, len(s.Channels))
	for i, ch := range s.Channels {
		out.Channels[i] = ch.Clone()
	}
	return out
}

// ChannelConfig настройки одного канала.
type ChannelConfig struct {
	ChannelID         string                 `json:"channelId"`
	City              string                 `json:"city"`
	Country           string                 `json:"country"`
	RoleID            *string                `json:"roleId,omitempty"`
	LastSentDate      map[MessageType]string `json:"lastSentDate,omitempty"`
	CachedPrayerTimes *PrayerTimes           `json:"cachedPrayerTimes"`
	CachedPrayerDate  string                 `json:"cachedPrayerDate,omitempty"`
}

// Clone копирует конфигурацию вместе с картой отметок.
func (c ChannelConfig) Clone() ChannelConfig {
	out := c
	if c.LastSentDate != nil {
		out.LastSentDate = make(map[MessageType]string, len(c.LastSentDate))
		for k, v := range c.LastSentDate {
			out.LastSentDate[k] = v
		}
	}
	if c.CachedPrayerTimes != nil {
		times := *c.CachedPrayerTimes
		out.CachedPrayerTimes = &times
	}
	if c.RoleID != nil {
		role := *c.RoleID
		out.RoleID = &role
	}
	return out
}

// PrayerTimes шесть ежедневных времён в формате HH:MM.
type PrayerTimes struct {
	Fajr     string `json:"Fajr"`
	Sunrise  string `json:"Sunrise"`
	Dhuhr    string `json:"Dhuhr"`
	Asr      string `json:"Asr"`
	Maghrib  string `json:"Maghrib"`
	Isha     string `json:"Isha"`
	Timezone string `json:"timezone,omitempty"`
}

// LunarDate дата по лунному календарю.
type LunarDate struct {
	Day       int
	Month     int
	Year      int
	MonthName string
}

// CountdownSource источник оценки оставшихся дней.
type CountdownSource string

const (
	SourceFixedEstimate CountdownSource = "fixedEstimate"
	SourceLiveLookup    CountdownSource = "liveLookup"
)

// CountdownResult результат сверки календарей, создаётся заново при каждом вызове.
type CountdownResult struct {
	DaysRemaining      int             `json:"daysRemaining"`
	IsEveOfUncertainty bool            `json:"isEveOfUncertainty"`
	Source             CountdownSource `json:"source"`
	InTargetPeriod     bool            `json:"inTargetPeriod"`
	ExpectedDate       time.Time       `json:"expectedDate,omitempty"`
}

// ClockTime время суток без даты.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime разбирает строку вида "05:12" или "05:12 (CET)".
func ParseClockTime(raw string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(raw, "%d:%d", &h, &m); err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", raw, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("parse clock time %q: out of range", raw)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// Add сдвигает время на d, оборачиваясь через полночь.
func (c ClockTime) Add(d time.Duration) ClockTime {
	const day = 24 * 60
	total := (c.Hour*60 + c.Minute + int(d/time.Minute)) % day
	if total < 0 {
		total += day
	}
	return ClockTime{Hour: total / 60, Minute: total % 60}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ScheduledJob задача напоминания в памяти процесса, не сохраняется.
type ScheduledJob struct {
	ID         string
	Type       MessageType
	FiresAt    ClockTime
	PrayerTime string
	Channel    ChannelConfig
}

// Message готовое к отправке сообщение.
type Message struct {
	Text    string
	Mention bool
}
