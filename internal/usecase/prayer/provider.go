package prayer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
)

// DefaultMethod метод расчёта Muslim World League.
const DefaultMethod = 3

// MethodRule сопоставляет подстроку названия страны с кодом метода расчёта.
type MethodRule struct {
	CountrySubstring string
	Method           int
}

// DefaultMethodRules таблица методов. Более поздние правила имеют приоритет.
var DefaultMethodRules = []MethodRule{
	{CountrySubstring: "algeria", Method: 19},
	{CountrySubstring: "canada", Method: 2},
	{CountrySubstring: "usa", Method: 2},
}

// MethodFor выбирает метод по стране без учёта регистра.
func MethodFor(country string, rules []MethodRule) int {
	country = strings.ToLower(country)
	method := DefaultMethod
	for _, r := range rules {
		if strings.Contains(country, strings.ToLower(r.CountrySubstring)) {
			method = r.Method
		}
	}
	return method
}

// Cache сохраняет полученные времена в конфигурации канала.
type Cache interface {
	CachePrayerTimes(ctx context.Context, channelID, date string, times domain.PrayerTimes) error
}

// Provider отдаёт времена молитв с кэшем на текущий день.
type Provider struct {
	fetcher domain.PrayerTimesFetcher
	cache   Cache
	rules   []MethodRule
	log     zerolog.Logger
}

// NewProvider создаёт провайдер. cache может быть nil.
func NewProvider(fetcher domain.PrayerTimesFetcher, cache Cache, logger zerolog.Logger) *Provider {
	return &Provider{fetcher: fetcher, cache: cache, rules: DefaultMethodRules, log: logger}
}

// PrayerTimes возвращает времена для канала на дату, используя кэш канала при совпадении даты.
func (p *Provider) PrayerTimes(ctx context.Context, ch domain.ChannelConfig, date time.Time) (domain.PrayerTimes, error) {
	day := date.Format(domain.DateLayout)
	if ch.CachedPrayerTimes != nil && ch.CachedPrayerDate == day {
		return *ch.CachedPrayerTimes, nil
	}
	times, err := p.ForLocation(ctx, ch.City, ch.Country, date)
	if err != nil {
		return domain.PrayerTimes{}, err
	}
	if p.cache != nil && ch.ChannelID != "" {
		if err := p.cache.CachePrayerTimes(ctx, ch.ChannelID, day, times); err != nil {
			p.log.Warn().Err(err).Str("channel", ch.ChannelID).Msg("prayer: не удалось сохранить кэш")
		}
	}
	return times, nil
}

// ForLocation запрашивает времена для города без кэширования.
func (p *Provider) ForLocation(ctx context.Context, city, country string, date time.Time) (domain.PrayerTimes, error) {
	method := MethodFor(country, p.rules)
	times, err := p.fetcher.FetchPrayerTimes(ctx, city, country, method, date)
	if err != nil {
		return domain.PrayerTimes{}, fmt.Errorf("prayer times %s/%s: %w", city, country, err)
	}
	return Normalize(times), nil
}

// Normalize отбрасывает суффиксы вида " (CET)" у времён.
func Normalize(t domain.PrayerTimes) domain.PrayerTimes {
	clean := func(v string) string {
		v = strings.TrimSpace(v)
		if i := strings.IndexByte(v, ' '); i >= 0 {
			return v[:i]
		}
		return v
	}
	t.Fajr = clean(t.Fajr)
	t.Sunrise = clean(t.Sunrise)
	t.Dhuhr = clean(t.Dhuhr)
	t.Asr = clean(t.Asr)
	t.Maghrib = clean(t.Maghrib)
	t.Isha = clean(t.Isha)
	return t
}
