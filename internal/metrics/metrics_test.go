package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func TestObserveFold(t *testing.T) {
	m := New()

	m.ObserveFold(models.Succeeded(models.ModelESMFold, "x.pdb"), 3*time.Second)
	m.ObserveFold(models.Failed(models.ModelBoltz), time.Minute)
	m.ObserveFold(models.NotSelected(models.ModelBoltz), 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FoldAttempts.WithLabelValues("ESMFold", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FoldAttempts.WithLabelValues("Boltz", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FoldAttempts.WithLabelValues("Boltz", "skipped")))
	// skipped attempts add no duration sample
	assert.Equal(t, 2, testutil.CollectAndCount(m.FoldDuration))
}

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveDropped(2)
	m.ObserveDropped(0)
	m.ObserveRun(models.RunStatusCompleted)
	m.ObserveRun(models.RunStatusRejected)
	m.ObserveRun(models.RunStatusCompleted)
	m.ObserveTokens(100, 20)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SequencesDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("rejected")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.OracleTokens.WithLabelValues("input")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFold(models.Failed(models.ModelBoltz), time.Second)
	m.ObserveDropped(1)
	m.ObserveRun(models.RunStatusFailed)
	m.ObserveTokens(1, 1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRun(models.RunStatusCompleted)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `foldcrew_runs_total{status="completed"} 1`)
}
