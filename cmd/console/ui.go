package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/internal/services/events"
	"github.com/jwebster45206/scene-engine/pkg/scene"
	"github.com/muesli/reflow/wordwrap"
)

// ConsoleUI is the BubbleTea model that follows one scene generation.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	streamClient  *http.Client
	story         *handlers.StoryResponse
	conversations []string

	sceneViewport viewport.Model
	metaViewport  viewport.Model
	ready         bool
	width         int
	height        int

	ctx    context.Context
	cancel context.CancelFunc
	events chan SSEEvent
	closed chan error

	status      string
	requestID   string
	actions     map[string]string
	locations   []scene.Location
	characters  []scene.Character
	description string
	sceneID     uuid.UUID
	done        bool
	err         error
	notice      string

	showQuitModal bool
	progressTick  int
}

type sseEventMsg struct {
	event SSEEvent
}

type sseClosedMsg struct {
	err error
}

type sceneRequestedMsg struct {
	response *handlers.GenerateSceneResponse
	err      error
}

type copiedMsg struct {
	err error
}

type progressTickMsg struct{}

var (
	scenePanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	descriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("86")) // green

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client, streamClient *http.Client, story *handlers.StoryResponse, conversations []string) ConsoleUI {
	ctx, cancel := context.WithCancel(context.Background())

	sceneVp := viewport.New(50, 20)
	sceneVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:        cfg,
		client:        client,
		streamClient:  streamClient,
		story:         story,
		conversations: conversations,
		sceneViewport: sceneVp,
		metaViewport:  viewport.New(20, 20),
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan SSEEvent, 16),
		closed:        make(chan error, 1),
		status:        "Connecting to event stream...",
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.startListening(), m.waitForEvent(), progressTick())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		sceneWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - sceneWidth - 6
		m.sceneViewport.Width = sceneWidth - 2
		m.sceneViewport.Height = m.height - 4
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done || m.err != nil {
				m.cancel()
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		case "c":
			if m.description != "" {
				return m, copyToClipboard(m.description)
			}
			return m, nil
		}

	case sseEventMsg:
		cmd = m.handleEvent(msg.event)
		m.refresh()
		return m, tea.Batch(cmd, m.waitForEvent())

	case sseClosedMsg:
		if !m.done && m.ctx.Err() == nil {
			if msg.err != nil {
				m.err = msg.err
			} else {
				m.err = errors.New("event stream closed")
			}
		}
		m.refresh()
		return m, nil

	case sceneRequestedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.requestID = msg.response.RequestID
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Scene description copied to clipboard."
		}
		m.refresh()
		return m, nil

	case progressTickMsg:
		if !m.done && m.err == nil {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
		return m, nil
	}

	m.sceneViewport, cmd = m.sceneViewport.Update(msg)
	return m, cmd
}

// handleEvent folds one stream event into the model
func (m *ConsoleUI) handleEvent(ev SSEEvent) tea.Cmd {
	switch agent.EventType(ev.Type) {
	case "connected":
		m.status = "Requesting a new scene..."
		return m.requestScene()

	case events.EventTypeRequestQueued:
		m.status = "Waiting for a worker..."

	case events.EventTypeRequestProcessing:
		m.status = "Generating scene..."

	case events.EventTypeRequestFailed:
		var p events.RequestPayload
		if err := json.Unmarshal(ev.Data, &p); err == nil && p.Error != "" {
			m.err = errors.New(p.Error)
		} else {
			m.err = errors.New("scene request failed")
		}

	case agent.EventActionChanged:
		var p agent.ActionsPayload
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			m.actions = p.Actions
		}

	case agent.EventLocationAdded:
		var l scene.Location
		if err := json.Unmarshal(ev.Data, &l); err == nil {
			m.locations = append(m.locations, l)
		}

	case agent.EventCharacterAdded:
		var c scene.Character
		if err := json.Unmarshal(ev.Data, &c); err == nil {
			m.characters = append(m.characters, c)
		}

	case agent.EventSceneComplete:
		var p agent.SceneCompletePayload
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			m.description = p.Description
			m.sceneID = p.SceneID
			m.status = p.Message
		}
		m.actions = nil
		m.done = true

	case agent.EventError:
		var p agent.ErrorPayload
		if err := json.Unmarshal(ev.Data, &p); err == nil {
			m.err = errors.New(p.Message)
		}
	}
	return nil
}

// refresh rebuilds both panels for the current viewport widths
func (m *ConsoleUI) refresh() {
	m.sceneViewport.SetContent(m.sceneContent())
	m.metaViewport.SetContent(m.metadata())
}

func (m ConsoleUI) sceneContent() string {
	width := m.sceneViewport.Width - 6 // Account for left(3) + right(3) padding
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("SCENE ENGINE") + "\n\n")
	if m.story != nil && m.story.Story != nil {
		content.WriteString(nameStyle.Render(m.story.Story.Title) + "\n")
		content.WriteString(wordwrap.String(m.story.Story.Description, width) + "\n\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if len(m.locations) > 0 {
		content.WriteString(titleStyle.Render("Location") + "\n")
		for _, l := range m.locations {
			content.WriteString(nameStyle.Render(l.Name) + "\n")
			content.WriteString(wordwrap.String(l.Description, width) + "\n")
			if l.ImageURL != "" {
				content.WriteString(promptStyle.Render(l.ImageURL) + "\n")
			}
			content.WriteString("\n")
		}
	}

	if len(m.characters) > 0 {
		content.WriteString(titleStyle.Render("Characters") + "\n")
		for _, c := range m.characters {
			content.WriteString(nameStyle.Render(c.Name) + "\n")
			content.WriteString(wordwrap.String(c.Description, width) + "\n")
			if c.ImageURL != "" {
				content.WriteString(promptStyle.Render(c.ImageURL) + "\n")
			}
			content.WriteString("\n")
		}
	}

	if m.description != "" {
		content.WriteString(titleStyle.Render("Scene") + "\n")
		content.WriteString(descriptionStyle.Render(wordwrap.String(m.description, width)) + "\n\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), width)) + "\n\n")
	} else if !m.done {
		content.WriteString(loadingStyle.Render(m.status) + "\n")
		for _, key := range slices.Sorted(maps.Keys(m.actions)) {
			content.WriteString(actionStyle.Render("• "+m.actions[key]) + "\n")
		}
		content.WriteString(m.renderProgressBar() + "\n")
	}

	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n")
	}
	return content.String()
}

func (m ConsoleUI) metadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STORY") + "\n\n")

	if m.story != nil && m.story.Story != nil {
		content.WriteString("Story ID:\n")
		content.WriteString(m.story.Story.ID.String()[:8] + "...\n\n")
	}
	if m.story != nil && m.story.Player != nil {
		content.WriteString("Player:\n")
		content.WriteString(m.story.Player.Name + "\n\n")
	}
	if m.story != nil {
		content.WriteString("Known cast:\n")
		content.WriteString(fmt.Sprintf("%d characters\n", len(m.story.Characters)))
		content.WriteString(fmt.Sprintf("%d locations\n\n", len(m.story.Locations)))
	}
	if m.requestID != "" {
		content.WriteString("Request:\n")
		content.WriteString(m.requestID[:min(8, len(m.requestID))] + "...\n\n")
	}
	if m.sceneID != uuid.Nil {
		content.WriteString("Scene ID:\n")
		content.WriteString(m.sceneID.String()[:8] + "...\n\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• c: Copy scene\n")
	content.WriteString("• ↑/↓: Scroll\n")
	content.WriteString("• q: Quit\n")

	return content.String()
}

func (m ConsoleUI) startListening() tea.Cmd {
	return func() tea.Msg {
		go func() {
			m.closed <- listenToSSE(m.ctx, m.streamClient, m.config.APIBaseURL, m.story.Story.ID, m.events)
		}()
		return nil
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return sseEventMsg{ev}
		case err := <-m.closed:
			return sseClosedMsg{err}
		}
	}
}

func (m ConsoleUI) requestScene() tea.Cmd {
	return func() tea.Msg {
		resp, err := requestScene(m.client, m.config.APIBaseURL, m.story.Story.ID, m.conversations)
		return sceneRequestedMsg{resp, err}
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		// Stream events and ticks keep flowing while the modal is up
		m.showQuitModal = false
		model, cmd := m.Update(msg)
		next := model.(ConsoleUI)
		next.showQuitModal = true
		return next, cmd
	}

	switch key.String() {
	case "y", "Y", "enter", "ctrl+c":
		m.cancel()
		return m, tea.Quit
	case "n", "N", "esc":
		m.showQuitModal = false
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("The scene is still being generated. The worker will finish it without you.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to keep watching"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	sceneWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - sceneWidth - 6

	scenePanel := scenePanelStyle.Width(sceneWidth).Height(m.height - 2).Render(m.sceneViewport.View())
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, scenePanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.sceneViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
