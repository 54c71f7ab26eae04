package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Отправленные напоминания по типам",
	}, []string{"type"})
	ReminderSendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_send_errors_total",
		Help: "Ошибки отправки напоминаний по типам",
	}, []string{"type"})
	RemindersDeduplicated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_deduplicated_total",
		Help: "Срабатывания, пропущенные журналом отправок",
	}, []string{"type"})
	ScheduledJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduled_jobs",
		Help: "Установленные задачи напоминаний",
	})
	ScheduleRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_rebuilds_total",
		Help: "Пересборки расписания",
	})
	SeasonActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "season_active",
		Help: "1, если сезон напоминаний запущен",
	})
	CountdownDaysRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "countdown_days_remaining",
		Help: "Последняя оценка оставшихся дней по источнику",
	}, []string{"source"})
	FetchFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fetch_fallbacks_total",
		Help: "Переходы на запасной вариант после ошибки внешнего запроса",
	}, []string{"source"})
	StateWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "state_write_errors_total",
		Help: "Ошибки записи документа состояния",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RemindersSent,
		ReminderSendErrors,
		RemindersDeduplicated,
		ScheduledJobs,
		ScheduleRebuilds,
		SeasonActive,
		CountdownDaysRemaining,
		FetchFallbacks,
		StateWriteErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// SetSeasonActive отражает глобальный флаг сезона.
func SetSeasonActive(active bool) {
	if active {
		SeasonActive.Set(1)
		return
	}
	SeasonActive.Set(0)
}
