package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRunFinished(t *testing.T) {
	m := NewMetrics()

	m.RunFinished(true, 42)
	m.RunFinished(false, 7)
	m.RunFinished(false, 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	require.Equal(t, 42.0, testutil.ToFloat64(m.RowsLoaded), "failed runs leave the gauge alone")
}

func TestStageFailed(t *testing.T) {
	m := NewMetrics()
	m.StageFailed("loading", "type_mismatch")
	m.StageFailed("loading", "type_mismatch")
	m.StageFailed("extracting", "status")

	require.Equal(t, 2.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("loading", "type_mismatch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("extracting", "status")))
}

func TestObserveStage(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("extracting", 200*time.Millisecond)
	m.ObserveStage("loading", time.Second)

	require.Equal(t, 2, testutil.CollectAndCount(m.StageDuration))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RunFinished(true, 3)

	require.NoError(t, m.WriteTextfile(""))

	path := filepath.Join(t.TempDir(), "vantaa_etl.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	require.True(t, strings.Contains(out, `etl_runs_total{outcome="success"} 1`), out)
	require.True(t, strings.Contains(out, "etl_rows_loaded 3"), out)
}
