package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransition(t *testing.T) {
	before := testutil.ToFloat64(transitionsTotal.WithLabelValues("event", "updated"))
	RecordTransition("event", "updated")
	RecordTransition("event", "updated")
	assert.Equal(t, before+2, testutil.ToFloat64(transitionsTotal.WithLabelValues("event", "updated")))
}

func TestRecordDeliveries_IgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal)
	RecordDeliveries(0)
	RecordDeliveries(-3)
	RecordDeliveries(4)
	assert.Equal(t, before+4, testutil.ToFloat64(deliveriesTotal))
}

func TestRecordSweep_CountsFailures(t *testing.T) {
	before := testutil.ToFloat64(sweepFailuresTotal.WithLabelValues("terms"))
	RecordSweep("terms", 20*time.Millisecond, false)
	RecordSweep("terms", 20*time.Millisecond, true)
	assert.Equal(t, before+1, testutil.ToFloat64(sweepFailuresTotal.WithLabelValues("terms")))
}

func TestRecordBatchRun(t *testing.T) {
	before := testutil.ToFloat64(batchRunsTotal.WithLabelValues("partial"))
	RecordBatchRun(false)
	assert.Equal(t, before+1, testutil.ToFloat64(batchRunsTotal.WithLabelValues("partial")))
}
