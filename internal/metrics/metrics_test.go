package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordersCountAfterInit(t *testing.T) {
	Init()
	Init()

	before := counterValue(t, identifierChecks.WithLabelValues("imei", ResultValid))
	IncIdentifierCheck("imei", true)
	if got := counterValue(t, identifierChecks.WithLabelValues("imei", ResultValid)); got != before+1 {
		t.Fatalf("expected identifier check counter to grow by 1, got %v -> %v", before, got)
	}

	beforeParts := counterValue(t, partsConsumed.WithLabelValues("PRT-TEST"))
	AddPartsConsumed("PRT-TEST", 3)
	AddPartsConsumed("PRT-TEST", 0)
	if got := counterValue(t, partsConsumed.WithLabelValues("PRT-TEST")); got != beforeParts+3 {
		t.Fatalf("expected parts counter to grow by 3, got %v -> %v", beforeParts, got)
	}

	ObserveHTTPRequest("GET", 200, 5*time.Millisecond)
	IncRepairTransition("completed")
	IncDashboardBuild(true)
	AddScanCodes(2)
}
