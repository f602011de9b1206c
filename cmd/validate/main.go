package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/internal/services/render"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <story.json>... | -workflows <dir>\n", os.Args[0])
		os.Exit(1)
	}

	if os.Args[1] == "-workflows" {
		if len(os.Args) != 3 {
			fmt.Fprintf(os.Stderr, "Usage: %s -workflows <dir>\n", os.Args[0])
			os.Exit(1)
		}
		if err := validateWorkflows(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Workflows are valid!")
		return
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &StoryValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("Story files are valid!")
}

// StoryValidator checks a story registration file before it is posted
// to /v1/stories
type StoryValidator struct {
	errors []string
}

func (v *StoryValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	if !strings.HasSuffix(filename, ".json") {
		return fmt.Errorf("story file must have .json extension: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var req handlers.CreateStoryRequest
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateStory(&req)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *StoryValidator) validateStory(req *handlers.CreateStoryRequest) {
	if strings.TrimSpace(req.Title) == "" {
		v.addError("title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		v.addError("description is required; the planner has nothing to build on without it")
	}
	for i, rule := range req.Rules {
		if strings.TrimSpace(rule) == "" {
			v.addError(fmt.Sprintf("rule %d is empty", i+1))
		}
	}

	player := scene.Character{
		Name:        req.Player.Name,
		Role:        scene.RolePlayer,
		Description: req.Player.Description,
	}
	if err := player.Validate(); err != nil {
		v.addError("player: " + err.Error())
	}
}

func (v *StoryValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

// validateWorkflows loads every renderer workflow the way the worker does
func validateWorkflows(dir string) error {
	var errs []string
	for _, kind := range []render.Kind{render.KindCharacter, render.KindLocation} {
		wf, err := render.LoadWorkflow(dir, kind)
		if err == nil {
			err = wf.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("  - %s: %v", kind, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("workflow errors in %s:\n%s", dir, strings.Join(errs, "\n"))
	}
	return nil
}
