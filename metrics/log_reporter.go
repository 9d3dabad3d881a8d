package metrics

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// LogReporter is a tally.StatsReporter that writes every
// reported value as a structured log entry.
type LogReporter struct {
	logger log.FieldLogger
}

// NewLogReporter creates a reporter on top of a logger.
func NewLogReporter(logger log.FieldLogger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) entry(name string, tags map[string]string) *log.Entry {
	fields := log.Fields{"metric": name}
	for k, v := range tags {
		fields[k] = v
	}
	return l.logger.WithFields(fields)
}

// ReportCounter logs a counter delta.
func (l *LogReporter) ReportCounter(name string, tags map[string]string, value int64) {
	l.entry(name, tags).WithField("value", value).Info("counter")
}

// ReportGauge logs a gauge value.
func (l *LogReporter) ReportGauge(name string, tags map[string]string, value float64) {
	l.entry(name, tags).WithField("value", value).Info("gauge")
}

// ReportTimer logs a single timer observation.
func (l *LogReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	l.entry(name, tags).WithField("value", interval).Info("timer")
}

// ReportHistogramValueSamples logs a value histogram
// bucket.
func (l *LogReporter) ReportHistogramValueSamples(name string, tags map[string]string,
	buckets tally.Buckets, bucketLowerBound, bucketUpperBound float64, samples int64) {
	l.entry(name, tags).WithFields(log.Fields{
		"lower":   bucketLowerBound,
		"upper":   bucketUpperBound,
		"samples": samples,
	}).Info("histogram")
}

// ReportHistogramDurationSamples logs a duration
// histogram bucket.
func (l *LogReporter) ReportHistogramDurationSamples(name string, tags map[string]string,
	buckets tally.Buckets, bucketLowerBound, bucketUpperBound time.Duration, samples int64) {
	l.entry(name, tags).WithFields(log.Fields{
		"lower":   bucketLowerBound,
		"upper":   bucketUpperBound,
		"samples": samples,
	}).Info("histogram")
}

// Capabilities reports that tags are supported.
func (l *LogReporter) Capabilities() tally.Capabilities {
	return l
}

// Reporting is part of tally.Capabilities.
func (l *LogReporter) Reporting() bool {
	return true
}

// Tagging is part of tally.Capabilities.
func (l *LogReporter) Tagging() bool {
	return true
}

// Flush does nothing, since every value is logged as
// soon as it is reported.
func (l *LogReporter) Flush() {
}
