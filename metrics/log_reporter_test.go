package metrics

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
)

func TestLogReporter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reporter := NewLogReporter(logger)

	reporter.ReportCounter("rounds", map[string]string{"backend": "ring"}, 3)
	reporter.ReportGauge("rate", nil, 12.5)
	reporter.ReportTimer("latency", nil, time.Second)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "rounds", entries[0].Data["metric"])
	assert.Equal(t, "ring", entries[0].Data["backend"])
	assert.Equal(t, int64(3), entries[0].Data["value"])
	assert.Equal(t, 12.5, entries[1].Data["value"])
	assert.True(t, reporter.Capabilities().Tagging())
}

func TestInitMetricScopeFlushesOnClose(t *testing.T) {
	scope, closer := InitMetricScope(&Config{}, "allreduce_bench", nil)
	scope.Counter("rounds").Inc(1)
	require.NoError(t, closer.Close())

	scope, closer = InitMetricScope(nil, "allreduce_bench", nil)
	assert.NotNil(t, scope)
	require.NoError(t, closer.Close())

	var _ tally.StatsReporter = NewLogReporter(nil)
}
