package observability

import (
	"testing"
	"time"

	"github.com/danmuck/closurectl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("closurectl", "POST", "/optimize", 200, 12*time.Millisecond)
	RecordOptimize("ADVANCED", "success", 800*time.Millisecond, 120, 60)

	before := testutil.ToFloat64(scratchInFlight)
	ScratchStaged()
	if got := testutil.ToFloat64(scratchInFlight); got != before+1 {
		t.Fatalf("expected in-flight gauge to rise, got %v", got)
	}
	failures := testutil.ToFloat64(scratchCleanupFailures)
	ScratchReleased(false)
	if got := testutil.ToFloat64(scratchInFlight); got != before {
		t.Fatalf("expected in-flight gauge to settle, got %v", got)
	}
	if got := testutil.ToFloat64(scratchCleanupFailures); got != failures+1 {
		t.Fatalf("expected cleanup failure count to rise, got %v", got)
	}
}
