package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

// ErrRejected is returned by an Approver when the human declines the
// proposed selection.
var ErrRejected = errors.New("model selection rejected")

// Approver is the human-in-the-loop suspension point. Approve blocks until
// the selection is approved (possibly edited), rejected, or ctx is done.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (models.ModelSelection, error)
}

// ApprovalRequest is what a human is asked to confirm.
type ApprovalRequest struct {
	RunID      string
	Preprocess models.PreprocessResult
	Selection  models.ModelSelection
	// ControlDir is where file-based approvers exchange files.
	ControlDir string
}

// ApprovalResponse is the human's decision on an ApprovalRequest.
type ApprovalResponse struct {
	RunID    string
	Approved bool
	// Models replaces the proposed model list when non-nil.
	Models []string
	Reason string
}

// Apply resolves a response against the proposed selection. Edited model
// names are passed through unvalidated; callers re-check them with
// Gate.Validate.
func (r ApprovalResponse) Apply(proposed models.ModelSelection) (models.ModelSelection, error) {
	if !r.Approved {
		if r.Reason != "" {
			return models.ModelSelection{}, fmt.Errorf("%w: %s", ErrRejected, r.Reason)
		}
		return models.ModelSelection{}, ErrRejected
	}
	if r.Models == nil {
		return proposed.Clone(), nil
	}
	edited := make([]models.ModelName, len(r.Models))
	for i, m := range r.Models {
		edited[i] = models.ModelName(m)
	}
	return models.ModelSelection{SelectedModels: edited, Explanation: proposed.Explanation}, nil
}

// AutoApprover approves every selection unchanged.
type AutoApprover struct{}

// Approve returns the proposed selection.
func (AutoApprover) Approve(_ context.Context, req ApprovalRequest) (models.ModelSelection, error) {
	return req.Selection.Clone(), nil
}

// ChannelApprover hands approval requests to another goroutine (a TUI, an
// HTTP handler, a test) and waits for its response.
type ChannelApprover struct {
	pending   map[string]chan ApprovalResponse
	requestCh chan ApprovalRequest
	mu        sync.RWMutex
}

// NewChannelApprover creates a ChannelApprover.
func NewChannelApprover() *ChannelApprover {
	return &ChannelApprover{
		pending:   make(map[string]chan ApprovalResponse),
		requestCh: make(chan ApprovalRequest, 10),
	}
}

// RequestCh returns the channel on which approval requests are delivered.
func (a *ChannelApprover) RequestCh() <-chan ApprovalRequest {
	return a.requestCh
}

// Approve sends the request and blocks until SubmitResponse is called for
// the same run or ctx is done.
func (a *ChannelApprover) Approve(ctx context.Context, req ApprovalRequest) (models.ModelSelection, error) {
	responseCh := make(chan ApprovalResponse, 1)

	a.mu.Lock()
	a.pending[req.RunID] = responseCh
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.pending, req.RunID)
		a.mu.Unlock()
	}()

	select {
	case a.requestCh <- req:
	case <-ctx.Done():
		return models.ModelSelection{}, ctx.Err()
	}

	select {
	case resp := <-responseCh:
		return resp.Apply(req.Selection)
	case <-ctx.Done():
		return models.ModelSelection{}, ctx.Err()
	}
}

// SubmitResponse delivers a decision for a pending request. It is a no-op
// if nothing is waiting for that run.
func (a *ChannelApprover) SubmitResponse(resp ApprovalResponse) {
	a.mu.RLock()
	ch, exists := a.pending[resp.RunID]
	a.mu.RUnlock()

	if exists {
		select {
		case ch <- resp:
		default:
			// already answered
		}
	}
}

// HasPendingRequest reports whether a request for the run is waiting.
func (a *ChannelApprover) HasPendingRequest(runID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, exists := a.pending[runID]
	return exists
}

// timeoutApprover bounds another approver's wait.
type timeoutApprover struct {
	inner   Approver
	timeout time.Duration
}

// WithTimeout wraps an approver so that Approve fails with
// context.DeadlineExceeded after d. A non-positive d returns inner as is.
func WithTimeout(inner Approver, d time.Duration) Approver {
	if d <= 0 {
		return inner
	}
	return &timeoutApprover{inner: inner, timeout: d}
}

func (t *timeoutApprover) Approve(ctx context.Context, req ApprovalRequest) (models.ModelSelection, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	sel, err := t.inner.Approve(ctx, req)
	if err != nil {
		return models.ModelSelection{}, fmt.Errorf("await approval: %w", err)
	}
	return sel, nil
}

var (
	_ Approver = AutoApprover{}
	_ Approver = (*ChannelApprover)(nil)
	_ Approver = (*timeoutApprover)(nil)
)
