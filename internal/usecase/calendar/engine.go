package calendar

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

// UnavailableLunarDate подставляется, когда лунную дату узнать не удалось.
const UnavailableLunarDate = "غير متوفر"

const (
	lunarMonthDays   = 30
	lunarMonthAvg    = 29.5
	uncertaintyDay   = 29
	defaultTarget    = 9
	defaultEve       = 1
	defaultTolerance = 5
)

// Config параметры сверки календарей.
type Config struct {
	TargetMonth   int
	EveOffset     int
	Tolerance     int
	ExpectedDates map[int]time.Time
}

// ParseExpectedDates разбирает таблицу ожидаемых дат вида YYYY-MM-DD, по одной на год.
func ParseExpectedDates(raw []string) (map[int]time.Time, error) {
	out := make(map[int]time.Time, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, item)
		if err != nil {
			return nil, fmt.Errorf("expected date %q: %w", item, err)
		}
		out[d.Year()] = d
	}
	return out, nil
}

// Engine считает дни до начала целевого лунного месяца.
type Engine struct {
	lunar domain.LunarCalendar
	cfg   Config
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

// Option настраивает Engine.
type Option func(*Engine)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation задаёт зону, в которой определяется текущая дата.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.log = logger }
}

// New создаёт движок сверки.
func New(lunar domain.LunarCalendar, cfg Config, opts ...Option) *Engine {
	if cfg.TargetMonth == 0 {
		cfg.TargetMonth = defaultTarget
	}
	if cfg.EveOffset == 0 {
		cfg.EveOffset = defaultEve
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = defaultTolerance
	}
	e := &Engine{lunar: lunar, cfg: cfg, loc: time.Local, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// today возвращает текущую дату как полночь UTC, чтобы разница дат не зависела от переходов на летнее время.
func (e *Engine) today() time.Time {
	y, m, d := e.now().In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) expectedFor(year int) (time.Time, bool) {
	if d, ok := e.cfg.ExpectedDates[year]; ok {
		return d, true
	}
	if d, ok := e.cfg.ExpectedDates[year+1]; ok {
		return d, true
	}
	return time.Time{}, false
}

// ExpectedDate возвращает ближайшую ожидаемую дату начала, не раньше сегодняшней.
func (e *Engine) ExpectedDate() (time.Time, bool) {
	today := e.today()
	expected, ok := e.expectedFor(today.Year())
	if ok && expected.Before(today) {
		expected, ok = e.expectedFor(today.Year() + 1)
	}
	return expected, ok
}

// FixedEstimate считает оставшиеся дни по таблице дат. Без подходящей даты возвращает -1.
func (e *Engine) FixedEstimate() domain.CountdownResult {
	expected, ok := e.ExpectedDate()
	if !ok {
		return domain.CountdownResult{DaysRemaining: -1, Source: domain.SourceFixedEstimate}
	}
	days := int(math.Ceil(expected.Sub(e.today()).Hours() / 24))
	return domain.CountdownResult{
		DaysRemaining:      days,
		IsEveOfUncertainty: days == e.cfg.EveOffset,
		Source:             domain.SourceFixedEstimate,
		ExpectedDate:       expected,
	}
}

// DaysUntilTarget сверяет оценку по таблице с живым запросом лунной даты.
// Ошибка запроса не возвращается: результат откатывается к оценке по таблице.
func (e *Engine) DaysUntilTarget(ctx context.Context) domain.CountdownResult {
	res := e.daysUntilTarget(ctx)
	metrics.CountdownDaysRemaining.WithLabelValues(string(res.Source)).Set(float64(res.DaysRemaining))
	return res
}

func (e *Engine) daysUntilTarget(ctx context.Context) domain.CountdownResult {
	fixed := e.FixedEstimate()

	lunar, err := e.lunar.LunarDate(ctx, e.now().In(e.loc))
	if err != nil {
		metrics.FetchFallbacks.WithLabelValues("lunar").Inc()
		e.log.Warn().Err(err).Msg("calendar: лунная дата недоступна, используем таблицу")
		return fixed
	}

	target := e.cfg.TargetMonth
	switch {
	case lunar.Month == target:
		return domain.CountdownResult{
			DaysRemaining:  0,
			Source:         domain.SourceLiveLookup,
			InTargetPeriod: true,
			ExpectedDate:   fixed.ExpectedDate,
		}
	case lunar.Month > target:
		return fixed
	}

	live := LiveEstimate(lunar, target)
	if abs(live-fixed.DaysRemaining) > e.cfg.Tolerance {
		e.log.Info().
			Int("live", live).
			Int("fixed", fixed.DaysRemaining).
			Msg("calendar: расхождение оценок превышает допуск, используем таблицу")
		return fixed
	}
	return domain.CountdownResult{
		DaysRemaining:      live,
		IsEveOfUncertainty: isLiveEve(lunar, target),
		Source:             domain.SourceLiveLookup,
		ExpectedDate:       fixed.ExpectedDate,
	}
}

// IsNightOfUncertainty истинно, если на канун указывает таблица или лунная дата 29 предшествующего месяца.
func (e *Engine) IsNightOfUncertainty(ctx context.Context) bool {
	if e.FixedEstimate().IsEveOfUncertainty {
		return true
	}
	lunar, err := e.lunar.LunarDate(ctx, e.now().In(e.loc))
	if err != nil {
		e.log.Warn().Err(err).Msg("calendar: лунная дата недоступна при проверке ночи сомнения")
		return false
	}
	return isLiveEve(lunar, e.cfg.TargetMonth)
}

// FormattedLunarDate возвращает сегодняшнюю лунную дату для текстов сообщений.
func (e *Engine) FormattedLunarDate(ctx context.Context) string {
	lunar, err := e.lunar.LunarDate(ctx, e.now().In(e.loc))
	if err != nil {
		return UnavailableLunarDate
	}
	return FormatLunarDate(lunar)
}

// FormatLunarDate форматирует лунную дату как «день месяц год هـ».
func FormatLunarDate(d domain.LunarDate) string {
	return fmt.Sprintf("%d %s %d هـ", d.Day, d.MonthName, d.Year)
}

// LiveEstimate оценивает оставшиеся дни по лунной дате, считая текущий месяц равным 30 дням, а последующие 29.5.
func LiveEstimate(d domain.LunarDate, target int) int {
	remaining := float64(lunarMonthDays-d.Day) + float64(target-d.Month-1)*lunarMonthAvg
	return int(math.Round(remaining))
}

func isLiveEve(d domain.LunarDate, target int) bool {
	return d.Month == target-1 && d.Day == uncertaintyDay
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
