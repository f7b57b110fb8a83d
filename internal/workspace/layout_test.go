package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShayCichocki/foldcrew/pkg/models"
)

func TestRunContext_Directories(t *testing.T) {
	rc := NewRunContext("run-x", DefaultLayout())

	assert.Equal(t, filepath.Join("input", "boltz", "run-x"), rc.InputDir(models.ModelBoltz))
	assert.Equal(t, filepath.Join("output", "boltz", "run-x"), rc.OutputDir(models.ModelBoltz))
	assert.Equal(t, filepath.Join("output", "esmfold", "run-x"), rc.OutputDir(models.ModelESMFold))
	assert.Equal(t, filepath.Join("output", "runs", "run-x"), rc.ManifestDir())
}

func TestRunContext_BackendsAreDisjoint(t *testing.T) {
	rc := NewRunContext("run-x", Layout{InputRoot: "/in", OutputRoot: "/out"})

	assert.NotEqual(t, rc.OutputDir(models.ModelBoltz), rc.OutputDir(models.ModelESMFold))
	assert.NotEqual(t, rc.InputDir(models.ModelBoltz), rc.InputDir(models.ModelESMFold))
}

func TestRunContext_RunsAreDisjoint(t *testing.T) {
	a := NewRunContext("run-a", DefaultLayout())
	b := NewRunContext("run-b", DefaultLayout())

	for _, m := range models.KnownModels() {
		assert.NotEqual(t, a.OutputDir(m), b.OutputDir(m))
	}
}
