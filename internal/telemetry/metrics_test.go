package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMetrics_Singleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	assert.Same(t, m, GetMetrics())

	// Instruments are usable against the default no-op provider
	require.NotNil(t, m.EnrollmentsTotal)
	require.NotNil(t, m.EnrollmentDuration)
	m.EnrollmentsTotal.Add(context.Background(), 1)
	m.EnrollmentDuration.Record(context.Background(), 1.5)
}
