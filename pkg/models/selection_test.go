package models

import "testing"

func TestModelSelection_Includes(t *testing.T) {
	sel := ModelSelection{SelectedModels: []ModelName{ModelBoltz}}

	if !sel.Includes(ModelBoltz) {
		t.Error("expected selection to include Boltz")
	}
	if sel.Includes(ModelESMFold) {
		t.Error("expected selection to exclude ESMFold")
	}

	var empty ModelSelection
	for _, m := range KnownModels() {
		if empty.Includes(m) {
			t.Errorf("empty selection should not include %q", m)
		}
	}
}

func TestModelSelection_CloneIsIndependent(t *testing.T) {
	sel := ModelSelection{SelectedModels: []ModelName{ModelESMFold, ModelBoltz}, Explanation: "both"}
	clone := sel.Clone()
	clone.SelectedModels[0] = ModelBoltz

	if sel.SelectedModels[0] != ModelESMFold {
		t.Error("mutating the clone changed the original selection")
	}
	if clone.Explanation != "both" {
		t.Errorf("clone explanation = %q, want %q", clone.Explanation, "both")
	}
}

func TestFoldResult_Constructors(t *testing.T) {
	tests := []struct {
		name        string
		result      FoldResult
		wantOutcome string
	}{
		{"not selected", NotSelected(ModelESMFold), "skipped"},
		{"failed", Failed(ModelBoltz), "failure"},
		{"succeeded", Succeeded(ModelBoltz, "output/boltz/run"), "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Outcome(); got != tt.wantOutcome {
				t.Errorf("Outcome() = %q, want %q", got, tt.wantOutcome)
			}
			if !tt.result.ModelIsSelected && tt.result.Success {
				t.Error("unselected result must not report success")
			}
			if !tt.result.Success && tt.result.OutputFilePath != "" {
				t.Error("failed result must not carry an output path")
			}
		})
	}
}

func TestPreprocessResult_Dropped(t *testing.T) {
	p := PreprocessResult{
		Records: []SequenceRecord{
			{RawText: "MKV", IsValid: true, CleanSequence: "MKV"},
			{RawText: "hello!"},
			{RawText: "123"},
		},
	}
	if got := p.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestRunStatus_Valid(t *testing.T) {
	for _, s := range []RunStatus{RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusRejected} {
		if !s.Valid() {
			t.Errorf("RunStatus(%q).Valid() = false, want true", s)
		}
	}
	if RunStatus("done").Valid() {
		t.Error("RunStatus(done) should be invalid")
	}
}
