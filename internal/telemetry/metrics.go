package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/studentportal"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Identity metrics
	RegistrationsTotal metric.Int64Counter
	LoginsTotal        metric.Int64Counter

	// Enrollment metrics
	EnrollmentsTotal         metric.Int64Counter
	EnrollmentsRejectedTotal metric.Int64Counter
	EnrollmentDuration       metric.Float64Histogram

	// Journal metrics
	JournalRecoveredTotal metric.Int64Counter

	// Session metrics
	SessionsExpiredTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments are bound to whichever meter provider is global at first use,
// so InitTelemetry must run before the first call to export anything.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.RegistrationsTotal, _ = meter.Int64Counter(
		"portal.registrations.total",
		metric.WithDescription("Total number of student registrations"),
		metric.WithUnit("{user}"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"portal.logins.total",
		metric.WithDescription("Total number of login attempts by result"),
		metric.WithUnit("{login}"),
	)

	m.EnrollmentsTotal, _ = meter.Int64Counter(
		"portal.enrollments.total",
		metric.WithDescription("Total number of successful course enrollments"),
		metric.WithUnit("{enrollment}"),
	)

	m.EnrollmentsRejectedTotal, _ = meter.Int64Counter(
		"portal.enrollments.rejected.total",
		metric.WithDescription("Total number of rejected enrollments by reason"),
		metric.WithUnit("{enrollment}"),
	)

	m.EnrollmentDuration, _ = meter.Float64Histogram(
		"portal.enrollment.duration",
		metric.WithDescription("Duration of the enrollment transaction including persistence"),
		metric.WithUnit("ms"),
	)

	m.JournalRecoveredTotal, _ = meter.Int64Counter(
		"portal.journal.recovered.total",
		metric.WithDescription("Total number of pending enrollment intents replayed"),
		metric.WithUnit("{intent}"),
	)

	m.SessionsExpiredTotal, _ = meter.Int64Counter(
		"portal.sessions.expired.total",
		metric.WithDescription("Total number of expired sessions removed by cleanup"),
		metric.WithUnit("{session}"),
	)

	return m
}
