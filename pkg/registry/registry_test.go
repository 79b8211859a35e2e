package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:                   "analyze-color-parallel",
				DisplayName:          "Analyze Color (Parallel)",
				TaskType:             "analyze-color-parallel",
				ImplementationStatus: StatusCompleted,
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"image"},
				},
			},
			{
				ID:                   "save-color-result",
				DisplayName:          "Save Color Result",
				TaskType:             "save-color-result",
				ImplementationStatus: StatusVerified,
			},
		},
	}
}

func TestRegistry_SaveLoadFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, createTestRegistry().Save(path))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	a, ok := reg.Find("save-color-result")
	require.True(t, ok)
	assert.Equal(t, "Save Color Result", a.DisplayName)

	_, ok = reg.Find("recommend-products")
	assert.False(t, ok)
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ActivityRegistry)
		wantErr string
	}{
		{name: "valid", mutate: func(*ActivityRegistry) {}},
		{
			name:    "duplicate task type",
			mutate:  func(r *ActivityRegistry) { r.Activities[1].TaskType = "analyze-color-parallel" },
			wantErr: "duplicate task type",
		},
		{
			name:    "duplicate id",
			mutate:  func(r *ActivityRegistry) { r.Activities[1].ID = "analyze-color-parallel" },
			wantErr: "duplicate activity id",
		},
		{
			name:    "unknown status",
			mutate:  func(r *ActivityRegistry) { r.Activities[0].ImplementationStatus = "done-ish" },
			wantErr: "implementation status",
		},
		{
			name: "schema does not compile",
			mutate: func(r *ActivityRegistry) {
				r.Activities[0].InputSchema = map[string]interface{}{"type": 12}
			},
			wantErr: "compile schema",
		},
		{
			name:    "missing task type",
			mutate:  func(r *ActivityRegistry) { r.Activities[0].TaskType = "" },
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := createTestRegistry()
			tt.mutate(reg)
			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegistry_Missing(t *testing.T) {
	reg := createTestRegistry()
	assert.Equal(t,
		[]string{"analyze-color-hybrid", "recommend-products"},
		reg.Missing([]string{"recommend-products", "analyze-color-parallel", "analyze-color-hybrid"}),
	)
	assert.Empty(t, reg.Missing([]string{"save-color-result"}))
}

func TestRegistry_AddUpdate(t *testing.T) {
	reg := createTestRegistry()

	err := reg.Add(Activity{ID: "recommend-products", TaskType: "recommend-products", ImplementationStatus: StatusPlanned})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.LastUpdated)

	err = reg.Add(Activity{ID: "other", TaskType: "save-color-result"})
	assert.ErrorContains(t, err, "already registered")

	require.NoError(t, reg.Update("recommend-products", "status", StatusCompleted))
	require.NoError(t, reg.Update("recommend-products", "retries", "3"))

	a, ok := reg.Find("recommend-products")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, a.ImplementationStatus)
	assert.Equal(t, 3, a.Retries)

	assert.ErrorContains(t, reg.Update("recommend-products", "status", "done-ish"), "implementation status")
	assert.ErrorContains(t, reg.Update("recommend-products", "retries", "three"), "invalid retries")
	assert.ErrorContains(t, reg.Update("recommend-products", "color", "red"), "unknown field")
	assert.ErrorContains(t, reg.Update("nope", "status", StatusPlanned), "not found")
}

// ==========================
// Shipped registry
// ==========================

func TestShippedRegistry(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	assert.Empty(t, reg.Missing([]string{
		"analyze-color-parallel",
		"analyze-color-hybrid",
		"save-color-result",
		"recommend-products",
	}))
}
