package models

import "strings"

// ModelName identifies a structure-prediction backend.
type ModelName string

const (
	// ModelESMFold is the hosted single-chain ESMFold inference endpoint.
	ModelESMFold ModelName = "ESMFold"
	// ModelBoltz is the local Boltz command-line predictor (multi-chain).
	ModelBoltz ModelName = "Boltz"
)

// KnownModels returns the fixed universe of backends, in dispatch order.
func KnownModels() []ModelName {
	return []ModelName{ModelESMFold, ModelBoltz}
}

// Valid returns true if the model name is a known value.
// Matching is exact; use ParseModelName for user or oracle supplied text.
func (m ModelName) Valid() bool {
	switch m {
	case ModelESMFold, ModelBoltz:
		return true
	default:
		return false
	}
}

// Slug returns the lowercase directory name used for the backend's
// working directories (input/<slug>/<run_id>).
func (m ModelName) Slug() string {
	return strings.ToLower(string(m))
}

// modelAliases maps normalized spellings to canonical names.
var modelAliases = map[string]ModelName{
	"esmfold":    ModelESMFold,
	"esm-fold":   ModelESMFold,
	"esm_fold":   ModelESMFold,
	"esm fold":   ModelESMFold,
	"esmfold_v1": ModelESMFold,
	"esmfold-v1": ModelESMFold,
	"boltz":      ModelBoltz,
	"boltz-1":    ModelBoltz,
	"boltz1":     ModelBoltz,
	"boltz-2":    ModelBoltz,
	"boltz2":     ModelBoltz,
	"boltz_1":    ModelBoltz,
	"boltz_2":    ModelBoltz,
}

// ParseModelName maps a loosely spelled backend name to its canonical form.
// The second return value is false when the name is not in the known universe.
func ParseModelName(s string) (ModelName, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	m, ok := modelAliases[key]
	return m, ok
}
