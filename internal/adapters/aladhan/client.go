package aladhan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

// ErrParse ответ сервиса не удалось разобрать.
var ErrParse = errors.New("aladhan: unexpected response")

// Client обращается к api.aladhan.com за временами молитв и лунной датой.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт таймаут запросов.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// New создаёт клиента.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type envelope struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type timingsData struct {
	Timings map[string]string `json:"timings"`
	Meta    struct {
		Timezone string `json:"timezone"`
	} `json:"meta"`
}

type hijriData struct {
	Hijri struct {
		Day   string `json:"day"`
		Year  string `json:"year"`
		Month struct {
			Number int    `json:"number"`
			Ar     string `json:"ar"`
			En     string `json:"en"`
		} `json:"month"`
	} `json:"hijri"`
}

// FetchPrayerTimes реализует domain.PrayerTimesFetcher.
func (c *Client) FetchPrayerTimes(ctx context.Context, city, country string, method int, date time.Time) (domain.PrayerTimes, error) {
	query := url.Values{}
	query.Set("city", city)
	query.Set("country", country)
	query.Set("method", strconv.Itoa(method))

	var data timingsData
	if err := c.get(ctx, "timings", "/timingsByCity/"+formatDate(date), query, &data); err != nil {
		return domain.PrayerTimes{}, err
	}
	t := domain.PrayerTimes{
		Fajr:     data.Timings["Fajr"],
		Sunrise:  data.Timings["Sunrise"],
		Dhuhr:    data.Timings["Dhuhr"],
		Asr:      data.Timings["Asr"],
		Maghrib:  data.Timings["Maghrib"],
		Isha:     data.Timings["Isha"],
		Timezone: data.Meta.Timezone,
	}
	if t.Fajr == "" || t.Maghrib == "" || t.Isha == "" {
		return domain.PrayerTimes{}, fmt.Errorf("%w: timings incomplete", ErrParse)
	}
	return t, nil
}

// LunarDate реализует domain.LunarCalendar.
func (c *Client) LunarDate(ctx context.Context, date time.Time) (domain.LunarDate, error) {
	var data hijriData
	if err := c.get(ctx, "gtoh", "/gToH/"+formatDate(date), nil, &data); err != nil {
		return domain.LunarDate{}, err
	}
	day, errDay := strconv.Atoi(data.Hijri.Day)
	year, errYear := strconv.Atoi(data.Hijri.Year)
	if errDay != nil || errYear != nil || data.Hijri.Month.Number < 1 || data.Hijri.Month.Number > 12 {
		return domain.LunarDate{}, fmt.Errorf("%w: hijri date %+v", ErrParse, data.Hijri)
	}
	return domain.LunarDate{
		Day:       day,
		Month:     data.Hijri.Month.Number,
		Year:      year,
		MonthName: data.Hijri.Month.Ar,
	}, nil
}

func formatDate(d time.Time) string {
	return d.Format("02-01-2006")
}

func (c *Client) get(ctx context.Context, op, endpoint string, query url.Values, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("aladhan", op, c.baseURL.Host, start, err) }()

	resolved := *c.baseURL
	resolved.Path = path.Clean(strings.TrimSuffix(c.baseURL.Path, "/") + endpoint)
	if query != nil {
		resolved.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: aladhan %s: %v", domain.ErrNetwork, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: aladhan %s: status %d", domain.ErrNetwork, op, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if env.Code != http.StatusOK {
		var detail string
		_ = json.Unmarshal(env.Data, &detail)
		if env.Code == http.StatusBadRequest || env.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", domain.ErrInvalidLocation, detail)
		}
		return fmt.Errorf("%w: code %d %s", ErrParse, env.Code, detail)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
