package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func TestLogRecorder_WritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := NewLogRecorder(zap.New(core))

	rec.RecordDiagnostic(context.Background(), Diagnostic{
		RunID:      "run-1",
		Model:      models.ModelESMFold,
		Stage:      StageResponse,
		Message:    "esmfold request failed",
		StatusCode: 503,
		Detail:     "upstream unavailable",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "esmfold request failed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "ESMFold", fields["backend"])
	assert.Equal(t, int64(503), fields["status_code"])
	assert.Equal(t, "upstream unavailable", fields["detail"])
}

func TestMultiRecorder_FansOut(t *testing.T) {
	a, b := &MemoryRecorder{}, &MemoryRecorder{}
	multi := MultiRecorder{a, nil, b}

	multi.RecordDiagnostic(context.Background(), Diagnostic{Model: models.ModelBoltz, Message: "x"})

	assert.Len(t, a.Diagnostics(), 1)
	assert.Len(t, b.Diagnostics(), 1)
}
