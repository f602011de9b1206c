package agent

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// workingState is what one generation call accumulates across steps.
// Tool handlers run concurrently, so every access goes through mu.
type workingState struct {
	mu sync.Mutex

	story         *scene.Story
	player        *scene.Character
	previous      *scene.Scene
	conversations []string
	charCap       int

	characters   map[uuid.UUID]scene.Character
	locations    map[uuid.UUID]scene.Location
	players      map[uuid.UUID]bool
	charOrder    []uuid.UUID
	locOrder     []uuid.UUID
	selectedLoc  *scene.Location
	selectedChar []scene.Character
	description  string

	locationErr  string
	characterErr string
	finalizeErr  string

	step int
}

func newWorkingState(in Input, characterCap int) *workingState {
	ws := &workingState{
		story:         in.Story,
		player:        in.Player,
		previous:      in.PreviousScene,
		conversations: in.RelevantConversations,
		charCap:       characterCap,
		characters:    make(map[uuid.UUID]scene.Character, len(in.CharactersPool)),
		locations:     make(map[uuid.UUID]scene.Location, len(in.LocationsPool)),
		players:       make(map[uuid.UUID]bool),
	}
	if in.Player != nil {
		ws.players[in.Player.ID] = true
	}
	for _, c := range in.CharactersPool {
		if ws.isPlayer(&c) {
			ws.players[c.ID] = true
			continue
		}
		if _, dup := ws.characters[c.ID]; dup {
			continue
		}
		ws.characters[c.ID] = c
		ws.charOrder = append(ws.charOrder, c.ID)
	}
	for _, l := range in.LocationsPool {
		if _, dup := ws.locations[l.ID]; dup {
			continue
		}
		ws.locations[l.ID] = l
		ws.locOrder = append(ws.locOrder, l.ID)
	}
	return ws
}

// isPlayer reports whether c is, or impersonates, the player character
func (ws *workingState) isPlayer(c *scene.Character) bool {
	if c.IsPlayer() {
		return true
	}
	if ws.player == nil {
		return false
	}
	return c.ID == ws.player.ID || scene.SameName(c.Name, ws.player.Name)
}

// playerID reports whether id belongs to a character that may never be
// selected
func (ws *workingState) playerID(id uuid.UUID) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.players[id]
}

func (ws *workingState) pooledCharacter(id uuid.UUID) (scene.Character, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	c, ok := ws.characters[id]
	return c, ok
}

func (ws *workingState) pooledLocation(id uuid.UUID) (scene.Location, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	l, ok := ws.locations[id]
	return l, ok
}

// setLocation replaces the selected location and makes it reusable
func (ws *workingState) setLocation(l *scene.Location) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	cp := *l
	ws.selectedLoc = &cp
	if _, ok := ws.locations[l.ID]; !ok {
		ws.locOrder = append(ws.locOrder, l.ID)
	}
	ws.locations[l.ID] = cp
}

// addCharacter appends c to the selection. It returns false when c is
// already selected or the selection is full; neither case is an error.
func (ws *workingState) addCharacter(c *scene.Character) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.characters[c.ID]; !ok {
		ws.charOrder = append(ws.charOrder, c.ID)
	}
	ws.characters[c.ID] = *c
	if ws.selectedLocked(c.ID) || len(ws.selectedChar) >= ws.charCap {
		return false
	}
	ws.selectedChar = append(ws.selectedChar, *c)
	return true
}

func (ws *workingState) isSelected(id uuid.UUID) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.selectedLocked(id)
}

func (ws *workingState) selectedLocked(id uuid.UUID) bool {
	for _, c := range ws.selectedChar {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (ws *workingState) full() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.selectedChar) >= ws.charCap
}

func (ws *workingState) setError(kind string, msg string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	switch kind {
	case ToolGenerateLocation:
		ws.locationErr = msg
	case ToolGenerateCharacter:
		ws.characterErr = msg
	case ToolFinalizeScene:
		ws.finalizeErr = msg
	}
}

func (ws *workingState) clearError(kind string) {
	ws.setError(kind, "")
}

func (ws *workingState) setDescription(d string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.description = d
}

func (ws *workingState) steps() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.step
}

func (ws *workingState) nextStep() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.step++
	return ws.step
}

// draft copies the selection for the finalizer
func (ws *workingState) draft(description string) Draft {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	d := Draft{
		StoryID:     ws.story.ID,
		Characters:  append([]scene.Character(nil), ws.selectedChar...),
		Description: description,
	}
	if ws.selectedLoc != nil {
		loc := *ws.selectedLoc
		d.Location = &loc
	}
	return d
}

// snapshot renders the state for the next planner prompt. Selected
// characters are left out of the available list.
func (ws *workingState) snapshot(maxSteps int) *prompts.PlannerState {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ps := &prompts.PlannerState{
		Story:                 ws.story,
		Player:                ws.player,
		PreviousScene:         ws.previous,
		RelevantConversations: ws.conversations,
		SelectedCharacters:    append([]scene.Character(nil), ws.selectedChar...),
		SceneDescription:      ws.description,
		LocationError:         ws.locationErr,
		CharacterError:        ws.characterErr,
		FinalizeError:         ws.finalizeErr,
		Step:                  ws.step,
		MaxSteps:              maxSteps,
	}
	if ws.selectedLoc != nil {
		loc := *ws.selectedLoc
		ps.SelectedLocation = &loc
	}
	for _, id := range ws.charOrder {
		if ws.selectedLocked(id) {
			continue
		}
		ps.AvailableCharacters = append(ps.AvailableCharacters, ws.characters[id])
	}
	for _, id := range ws.locOrder {
		ps.AvailableLocations = append(ps.AvailableLocations, ws.locations[id])
	}
	return ps
}

// result copies the selection into a scene.Result
func (ws *workingState) result(sceneID uuid.UUID, description string) *scene.Result {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	r := &scene.Result{
		SceneID:     sceneID,
		Characters:  append([]scene.Character(nil), ws.selectedChar...),
		Description: description,
		StepsTaken:  ws.step,
	}
	if ws.selectedLoc != nil {
		loc := *ws.selectedLoc
		r.Location = &loc
	}
	return r
}
