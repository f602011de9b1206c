package render

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestLoadWorkflow_DefaultWhenMissing(t *testing.T) {
	wf, err := LoadWorkflow(t.TempDir(), KindLocation)
	require.NoError(t, err)
	require.Contains(t, wf, "9")
	assert.Equal(t, "SaveImage", wf["9"].ClassType)

	_, err = LoadWorkflow(t.TempDir(), Kind("vehicle"))
	assert.Error(t, err)
}

func TestLoadWorkflow_FromDir(t *testing.T) {
	dir := t.TempDir()
	content := `{"1": {"class_type": "CLIPTextEncode", "inputs": {"text": "placeholder"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "characters_api.json"), []byte(content), 0o644))

	wf, err := LoadWorkflow(dir, KindCharacter)
	require.NoError(t, err)
	assert.Len(t, wf, 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "locations_api.json"), []byte("{broken"), 0o644))
	_, err = LoadWorkflow(dir, KindLocation)
	assert.Error(t, err)
}

func TestWorkflowCustomize(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		wantSteps func(int) bool
	}{
		{"character uses fixed steps", KindCharacter, func(s int) bool { return s == characterSteps }},
		{"location randomizes steps", KindLocation, func(s int) bool { return s >= 20 && s <= 40 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := parseWorkflow([]byte(defaultWorkflow))
			require.NoError(t, err)

			seed := wf.Customize(tt.kind, "a misty harbor at dawn", "abcd1234", testRand())
			assert.GreaterOrEqual(t, seed, int64(1))

			assert.Equal(t, "a misty harbor at dawn", wf["6"].Inputs["text"])
			assert.Equal(t, "", wf["7"].Inputs["text"], "empty negative prompt must be preserved")

			sampler := wf["3"].Inputs
			assert.Equal(t, seed, sampler["seed"])
			assert.True(t, tt.wantSteps(sampler["steps"].(int)), "steps %v", sampler["steps"])
			cfg := sampler["cfg"].(float64)
			assert.True(t, cfg >= 6.5 && cfg <= 8.5, "cfg %v", cfg)
			assert.Contains(t, samplers, sampler["sampler_name"])

			prefix := wf["9"].Inputs["filename_prefix"].(string)
			assert.True(t, strings.HasPrefix(prefix, string(tt.kind)+"_abcd1234_"), prefix)
		})
	}
}

func TestWorkflowCustomize_AddsSaveImage(t *testing.T) {
	wf, err := parseWorkflow([]byte(`{
		"1": {"class_type": "CLIPTextEncode", "inputs": {"text": "x"}},
		"2": {"class_type": "VAEDecode", "inputs": {}}
	}`))
	require.NoError(t, err)

	wf.Customize(KindLocation, "p", "gen", testRand())

	require.Contains(t, wf, "3")
	assert.Equal(t, "SaveImage", wf["3"].ClassType)
	assert.Equal(t, []interface{}{"2", 0}, wf["3"].Inputs["images"])
}

func TestWorkflowClone(t *testing.T) {
	wf, err := parseWorkflow([]byte(defaultWorkflow))
	require.NoError(t, err)

	clone := wf.Clone()
	clone.Customize(KindCharacter, "changed", "gen", testRand())
	assert.Equal(t, "prompt", wf["6"].Inputs["text"])
}

func TestWorkflowValidate(t *testing.T) {
	wf, err := LoadWorkflow(t.TempDir(), KindCharacter)
	require.NoError(t, err)
	assert.NoError(t, wf.Validate())

	tests := []struct {
		name    string
		drop    string
		wantErr string
	}{
		{"no sampler", "KSampler", "KSampler"},
		{"no prompt", "CLIPTextEncode", "CLIPTextEncode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := wf.Clone()
			for id, n := range w {
				if n.ClassType == tt.drop {
					delete(w, id)
				}
			}
			err := w.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	w := wf.Clone()
	for id, n := range w {
		switch n.ClassType {
		case "SaveImage", "VAEDecode", "PreviewImage":
			delete(w, id)
		}
	}
	assert.ErrorContains(t, w.Validate(), "image output")
}
