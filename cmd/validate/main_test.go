package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestStoryValidator(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "valid",
			file:    "harbor.json",
			content: `{"title":"Harbor Lights","description":"A smuggler's port","rules":["No magic"],"player":{"name":"Aria","description":"A courier"}}`,
		},
		{
			name:    "wrong extension",
			file:    "harbor.yaml",
			content: `{}`,
			wantErr: ".json extension",
		},
		{
			name:    "invalid json",
			file:    "broken.json",
			content: `{"title":`,
			wantErr: "invalid JSON",
		},
		{
			name:    "unknown field",
			file:    "extra.json",
			content: `{"title":"T","description":"D","player":{"name":"A","description":"B"},"scenes":[]}`,
			wantErr: "strict JSON",
		},
		{
			name:    "missing player",
			file:    "noplayer.json",
			content: `{"title":"Harbor Lights","description":"A smuggler's port"}`,
			wantErr: "player: character name is required",
		},
		{
			name:    "empty rule",
			file:    "rules.json",
			content: `{"title":"T","description":"D","rules":[" "],"player":{"name":"A","description":"B"}}`,
			wantErr: "rule 1 is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			err := (&StoryValidator{}).validateFile(path)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid file, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateWorkflows(t *testing.T) {
	dir := t.TempDir()
	if err := validateWorkflows(dir); err != nil {
		t.Errorf("Expected built-in workflows to be valid, got %v", err)
	}

	writeFile(t, dir, "locations_api.json", `{"1": {"class_type": "KSampler", "inputs": {}}}`)
	err := validateWorkflows(dir)
	if err == nil || !strings.Contains(err.Error(), "location") {
		t.Errorf("Expected location workflow error, got %v", err)
	}
}
