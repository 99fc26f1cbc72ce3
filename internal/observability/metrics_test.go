package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	m := NewMetrics()

	m.RecordOperation("/dev/ttyUSB0", "write", "success", 12*time.Second)
	m.RecordOperation("/dev/ttyUSB0", "write", "success", 11*time.Second)
	m.RecordOperation("/dev/ttyUSB0", "verify", "verify-mismatch", 3*time.Second)
	m.RecordWrite("/dev/ttyUSB0", 10, 2038)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("/dev/ttyUSB0", "write", "success")); got != 2 {
		t.Errorf("write successes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("/dev/ttyUSB0", "skipped")); got != 2038 {
		t.Errorf("skipped records = %v, want 2038", got)
	}
	if got := testutil.CollectAndCount(m.operations); got != 2 {
		t.Errorf("operation series = %d, want 2", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordOperation("sim", "read", "success", time.Second)

	path := filepath.Join(t.TempDir(), "eepromctl.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`eepromctl_operation_total{operation="read",port="sim",status="success"} 1`,
		"eepromctl_operation_duration_seconds_bucket",
		"eepromctl_operation_last_run_timestamp_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "go_goroutines") {
		t.Error("textfile should not contain default collectors")
	}
}
