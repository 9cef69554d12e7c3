package detail

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

// Loader fetches the aggregated view of a task.
type Loader interface {
	GetTaskDetails(ctx context.Context, taskID string) (*model.TaskDetails, error)
}

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// OpenCommentsMsg asks the parent to open the comment thread of a task.
type OpenCommentsMsg struct {
	TaskID string
}

// DetailLoadedMsg carries the loaded task details.
type DetailLoadedMsg struct {
	TaskID  string
	Details *model.TaskDetails
	Err     error
}

// Model is the task detail view component.
type Model struct {
	loader   Loader
	taskID   string
	details  *model.TaskDetails
	err      string
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(loader Loader, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		loader:   loader,
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Load switches the view to taskID and returns the fetch command.
func (m *Model) Load(taskID string) tea.Cmd {
	m.taskID = taskID
	m.details = nil
	m.err = ""
	m.loading = true
	loader := m.loader
	return func() tea.Msg {
		d, err := loader.GetTaskDetails(context.Background(), taskID)
		return DetailLoadedMsg{TaskID: taskID, Details: d, Err: err}
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		if msg.TaskID != m.taskID {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = api.Message(msg.Err, "Failed to load task")
			return m, nil
		}
		m.details = msg.Details
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Comments):
			if m.taskID != "" {
				id := m.taskID
				return m, func() tea.Msg { return OpenCommentsMsg{TaskID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			if m.taskID != "" {
				return m, m.Load(m.taskID)
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	center := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return center.Render("Loading task details...")
	case m.err != "":
		return center.Foreground(theme.ColorRed).Render(m.err)
	case m.details == nil:
		return center.Render("No task selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.details == nil {
		return ""
	}
	return Render(*m.details, m.width)
}

// Render formats task details as plain terminal text. It is shared by the
// TUI viewport and the task CLI command.
func Render(d model.TaskDetails, width int) string {
	task := d.Task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title))

	badges := []string{theme.StatusStyle(task.Status).Render(task.Status)}
	if task.Priority != "" {
		badges = append(badges, "  ", theme.PriorityStyle(task.Priority).Render(task.Priority))
	}
	if task.Pinned {
		badges = append(badges, "  ", theme.HelpStyle.Render("pinned"))
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, badges...), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%-10s %s",
			metaStyle.Render(label+":"), valStyle.Render(value)))
	}

	meta("Assignees", strings.Join(task.AssigneeIDs, ", "))
	if task.DueDate != nil {
		meta("Due", task.DueDate.Format("2006-01-02"))
	}
	if !task.CreatedAt.IsZero() {
		meta("Created", task.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !task.UpdatedAt.IsZero() {
		meta("Updated", task.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if total := d.TotalMinutes(); total > 0 {
		meta("Logged", fmt.Sprintf("%dh%02dm", total/60, total%60))
	}

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(width-4, 80), 0)))
	sections = append(sections, "", separator)

	sections = append(sections, theme.SectionStyle.Render("Description"))
	if task.Description != "" {
		sections = append(sections, task.Description)
	} else {
		sections = append(sections, theme.HelpStyle.Render("No description"))
	}

	if len(d.Subtasks) > 0 {
		sections = append(sections, theme.SectionStyle.Render(
			fmt.Sprintf("Subtasks (%d)", len(d.Subtasks))))
		for _, s := range d.Subtasks {
			box := "[ ]"
			if s.Completed {
				box = "[x]"
			}
			sections = append(sections, box+" "+s.Title)
		}
	}

	if len(d.Dependencies) > 0 {
		sections = append(sections, theme.SectionStyle.Render("Depends on"))
		for _, dep := range d.Dependencies {
			sections = append(sections, "- "+dep.DependsOnTaskID)
		}
	}

	if len(d.Attachments) > 0 {
		sections = append(sections, theme.SectionStyle.Render(
			fmt.Sprintf("Attachments (%d)", len(d.Attachments))))
		for _, a := range d.Attachments {
			sections = append(sections, fmt.Sprintf("- %s (%d bytes)", a.FileName, a.Size))
		}
	}

	sections = append(sections, theme.SectionStyle.Render(
		fmt.Sprintf("Comments (%d)", len(d.Comments))))
	sections = append(sections, theme.HelpStyle.Render("press c to open the thread"))

	if len(d.ActivityLogs) > 0 {
		sections = append(sections, theme.SectionStyle.Render("Activity"))
		for _, a := range d.ActivityLogs {
			sections = append(sections, fmt.Sprintf("%s  %s",
				metaStyle.Render(a.CreatedAt.Format("Jan 02 15:04")), a.Action))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// TaskID returns the task being displayed.
func (m Model) TaskID() string {
	return m.taskID
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.details != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
