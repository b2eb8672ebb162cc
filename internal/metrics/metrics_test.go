package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkstage/coordinator/pkg/types"
)

func TestNewCollector(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.submissionsStarted)
	assert.NotNil(t, collector.submissionsFinished)
	assert.NotNil(t, collector.taskEvents)
	assert.NotNil(t, collector.reservationLatency)
	assert.NotNil(t, collector.recoveryClaims)
	assert.NotNil(t, collector.submissionsComputing)
}

func TestRecordSubmissionStarted(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			collector.RecordSubmissionStarted()
		}
	})
}

func TestRecordSubmissionFinished(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordSubmissionFinished(types.StatusSuccess)
		collector.RecordSubmissionFinished(types.StatusSnarkError)
	})
}

func TestRecordTaskEvent(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordTaskEvent(types.KindSplit, types.TaskSuccess)
		collector.RecordTaskEvent(types.KindProve, types.TaskFailed)
		collector.RecordTaskEvent(types.KindAgg, types.TaskSuccess)
		collector.RecordTaskEvent(types.KindSnark, types.TaskSuccess)
	})
}

func TestObserveReservationLatency(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	for _, latency := range []float64{0.001, 0.01, 0.1, 1.0, 5.0} {
		assert.NotPanics(t, func() {
			collector.ObserveReservationLatency(latency)
		})
	}
}

func TestRecordRecoveryClaim(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 3; i++ {
			collector.RecordRecoveryClaim()
		}
	})
}

func TestSetSubmissionsComputing(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	for _, n := range []int{0, 10, 100, 5} {
		assert.NotPanics(t, func() {
			collector.SetSubmissionsComputing(n)
		})
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			collector.RecordSubmissionStarted()
			collector.RecordTaskEvent(types.KindProve, types.TaskSuccess)
			collector.ObserveReservationLatency(0.1)
			collector.SetSubmissionsComputing(10)
			done <- true
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}
}

func TestCollectorIsolation(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector1 := NewCollector()
	require.NotNil(t, collector1)

	// A second collector on the same registerer panics on duplicate
	// registration — a process should have only one Collector.
	assert.Panics(t, func() {
		NewCollector()
	})
}

func TestSubmissionLifecycleSequence(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordSubmissionStarted()
		collector.SetSubmissionsComputing(1)

		collector.RecordTaskEvent(types.KindSplit, types.TaskSuccess)
		collector.RecordTaskEvent(types.KindProve, types.TaskSuccess)
		collector.RecordTaskEvent(types.KindAgg, types.TaskSuccess)
		collector.RecordTaskEvent(types.KindSnark, types.TaskSuccess)

		collector.SetSubmissionsComputing(0)
		collector.RecordSubmissionFinished(types.StatusSuccess)
	})
}
