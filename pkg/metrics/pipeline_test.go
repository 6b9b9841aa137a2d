package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPipelineMetrics(reg)

	metrics.IncUpload("success")
	metrics.IncUpload("rolled_back")
	metrics.IncRollback()
	metrics.IncInference("ok")
	metrics.ObserveUploadDuration("image", 150*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "uploads_total", "status", "success"); err != nil {
		t.Fatalf("fetch uploads success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected uploads success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "uploads_total", "status", "rolled_back"); err != nil {
		t.Fatalf("fetch uploads rolled_back: %v", err)
	} else if got != 1 {
		t.Fatalf("expected uploads rolled_back=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "inference_requests_total", "outcome", "ok"); err != nil {
		t.Fatalf("fetch inference: %v", err)
	} else if got != 1 {
		t.Fatalf("expected inference ok=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "upload_duration_seconds", "kind", "image"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	rollbacks := findMetricFamily(mfs, "upload_rollbacks_total")
	if rollbacks == nil {
		t.Fatal("upload_rollbacks_total not registered")
	}
	if got := rollbacks.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected rollbacks=1, got %f", got)
	}
}

func TestPipelineMetricsNilReceiverIsNoOp(t *testing.T) {
	var metrics *PipelineMetrics
	metrics.IncUpload("success")
	metrics.IncRollback()
	metrics.IncInference("ok")
	metrics.ObserveUploadDuration("video", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
