package models

// ModelSelection is the committed decision of which backends run.
// Membership in SelectedModels is the only thing adapters consult.
type ModelSelection struct {
	// SelectedModels lists the backends to invoke. It may be empty.
	SelectedModels []ModelName `json:"selected_models"`
	// Explanation is the non-authoritative rationale, kept for audit.
	Explanation string `json:"explanation,omitempty"`
}

// Includes reports whether the backend was selected.
func (s ModelSelection) Includes(m ModelName) bool {
	for _, sel := range s.SelectedModels {
		if sel == m {
			return true
		}
	}
	return false
}

// Names returns the selected models as plain strings.
func (s ModelSelection) Names() []string {
	out := make([]string, len(s.SelectedModels))
	for i, m := range s.SelectedModels {
		out[i] = string(m)
	}
	return out
}

// Clone returns a deep copy safe to hand to a concurrent adapter.
func (s ModelSelection) Clone() ModelSelection {
	models := make([]ModelName, len(s.SelectedModels))
	copy(models, s.SelectedModels)
	return ModelSelection{SelectedModels: models, Explanation: s.Explanation}
}
