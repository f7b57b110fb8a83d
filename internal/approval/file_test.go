package approval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/foldcrew/internal/selection"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func fileRequest(t *testing.T) selection.ApprovalRequest {
	req := testRequest()
	req.ControlDir = filepath.Join(t.TempDir(), "control")
	return req
}

func newTestFileApprover() *FileApprover {
	a := NewFileApprover(nil)
	a.pollInterval = 20 * time.Millisecond
	return a
}

// dropFile waits for the request file, then writes name with content.
func dropFile(t *testing.T, dir, name, content string) {
	t.Helper()
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(filepath.Join(dir, RequestFile)); err == nil {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
	}()
}

func TestFileApprover_Approve(t *testing.T) {
	req := fileRequest(t)
	dropFile(t, req.ControlDir, ApproveFile, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sel, err := newTestFileApprover().Approve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.Selection, sel)

	data, err := os.ReadFile(filepath.Join(req.ControlDir, RequestFile))
	require.NoError(t, err)
	var snapshot Request
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, []string{"ESMFold", "Boltz"}, snapshot.SelectedModels)
	assert.Equal(t, []string{"ESMFold", "Boltz"}, snapshot.KnownModels)
	assert.Len(t, snapshot.CleanSequences, 1)
}

func TestFileApprover_ApproveEdited(t *testing.T) {
	req := fileRequest(t)
	dropFile(t, req.ControlDir, ApproveFile, "# only the multi-chain model\nBoltz\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sel, err := newTestFileApprover().Approve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []models.ModelName{models.ModelBoltz}, sel.SelectedModels)
}

func TestFileApprover_Reject(t *testing.T) {
	req := fileRequest(t)
	dropFile(t, req.ControlDir, RejectFile, "no GPU today\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := newTestFileApprover().Approve(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, selection.ErrRejected)
	assert.Contains(t, err.Error(), "no GPU today")
}

func TestFileApprover_IgnoresStaleDecision(t *testing.T) {
	req := fileRequest(t)
	require.NoError(t, os.MkdirAll(req.ControlDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(req.ControlDir, RejectFile), []byte("old"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestFileApprover().Approve(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileApprover_NoControlDir(t *testing.T) {
	_, err := newTestFileApprover().Approve(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestParseModelList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   \n\n", nil},
		{"Boltz", []string{"Boltz"}},
		{"ESMFold, Boltz", []string{"ESMFold", "Boltz"}},
		{"ESMFold\nBoltz\n", []string{"ESMFold", "Boltz"}},
		{"# comment\nBoltz,,", []string{"Boltz"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseModelList(tt.in), "ParseModelList(%q)", tt.in)
	}
}
