package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func proposed() models.ModelSelection {
	return models.ModelSelection{
		SelectedModels: []models.ModelName{models.ModelESMFold, models.ModelBoltz},
		Explanation:    "single chain",
	}
}

func TestAutoApprover(t *testing.T) {
	sel, err := AutoApprover{}.Approve(context.Background(), ApprovalRequest{Selection: proposed()})
	require.NoError(t, err)
	assert.Equal(t, proposed(), sel)
}

func TestApprovalResponse_Apply(t *testing.T) {
	t.Run("approve unchanged", func(t *testing.T) {
		sel, err := ApprovalResponse{Approved: true}.Apply(proposed())
		require.NoError(t, err)
		assert.Equal(t, proposed(), sel)
	})

	t.Run("approve edited", func(t *testing.T) {
		sel, err := ApprovalResponse{Approved: true, Models: []string{"Boltz"}}.Apply(proposed())
		require.NoError(t, err)
		assert.Equal(t, []models.ModelName{models.ModelBoltz}, sel.SelectedModels)
		assert.Equal(t, "single chain", sel.Explanation)
	})

	t.Run("approve none", func(t *testing.T) {
		sel, err := ApprovalResponse{Approved: true, Models: []string{}}.Apply(proposed())
		require.NoError(t, err)
		assert.Empty(t, sel.SelectedModels)
	})

	t.Run("reject", func(t *testing.T) {
		_, err := ApprovalResponse{Reason: "too expensive"}.Apply(proposed())
		assert.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "too expensive")
	})
}

func TestChannelApprover_RoundTrip(t *testing.T) {
	a := NewChannelApprover()

	go func() {
		req := <-a.RequestCh()
		assert.True(t, a.HasPendingRequest(req.RunID))
		a.SubmitResponse(ApprovalResponse{RunID: req.RunID, Approved: true, Models: []string{"Boltz"}})
	}()

	sel, err := a.Approve(context.Background(), ApprovalRequest{RunID: "run-1", Selection: proposed()})
	require.NoError(t, err)
	assert.Equal(t, []models.ModelName{models.ModelBoltz}, sel.SelectedModels)
	assert.False(t, a.HasPendingRequest("run-1"))
}

func TestChannelApprover_Reject(t *testing.T) {
	a := NewChannelApprover()

	go func() {
		req := <-a.RequestCh()
		a.SubmitResponse(ApprovalResponse{RunID: req.RunID, Approved: false})
	}()

	_, err := a.Approve(context.Background(), ApprovalRequest{RunID: "run-1", Selection: proposed()})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestChannelApprover_SubmitWithoutPending(t *testing.T) {
	a := NewChannelApprover()
	// must not block or panic
	a.SubmitResponse(ApprovalResponse{RunID: "nobody", Approved: true})
	assert.False(t, a.HasPendingRequest("nobody"))
}

func TestWithTimeout(t *testing.T) {
	a := WithTimeout(NewChannelApprover(), 20*time.Millisecond)

	_, err := a.Approve(context.Background(), ApprovalRequest{RunID: "run-1", Selection: proposed()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithTimeout_NonPositiveIsIdentity(t *testing.T) {
	inner := AutoApprover{}
	assert.Equal(t, Approver(inner), WithTimeout(inner, 0))
}
