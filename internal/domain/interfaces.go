package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDocumentNotFound документ состояния ещё не сохранялся.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrChannelNotFound канал не существует или недоступен боту.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrPermissionDenied у бота нет прав писать в канал.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNetwork сбой сети при обращении к внешнему сервису.
	ErrNetwork = errors.New("network error")
	// ErrPartialDelivery часть длинного сообщения уже доставлена, остальное нет.
	ErrPartialDelivery = errors.New("partial delivery")
	// ErrInvalidLocation город или страна не распознаны сервисом времени молитв.
	ErrInvalidLocation = errors.New("invalid location")
)

// PrayerTimesFetcher получает времена молитв для города на дату.
type PrayerTimesFetcher interface {
	FetchPrayerTimes(ctx context.Context, city, country string, method int, date time.Time) (PrayerTimes, error)
}

// LunarCalendar переводит григорианскую дату в лунную.
type LunarCalendar interface {
	LunarDate(ctx context.Context, date time.Time) (LunarDate, error)
}

// Sender доставляет сообщение в канал чата.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// DocumentStore хранит документ состояния целиком.
type DocumentStore interface {
	Load(ctx context.Context, path string) ([]byte, error)
	Save(ctx context.Context, path string, data []byte) error
}

// JobHandle идентификатор установленного таймера.
type JobHandle int

// DailyTimer запускает функцию ежедневно в заданное время суток.
type DailyTimer interface {
	ScheduleDaily(at ClockTime, fn func()) (JobHandle, error)
	Cancel(handle JobHandle)
}

// DeliveryClaims межпроцессная отметка "эту отправку уже кто-то выполняет".
type DeliveryClaims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
