package login

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/service"
	"github.com/nhle/taskhub/internal/theme"
)

// Authenticator signs a user in.
type Authenticator interface {
	Login(ctx context.Context, c service.Credentials) (*model.User, error)
}

// Mode is the current step of the sign-in flow.
type Mode int

const (
	ModeForm Mode = iota
	ModeSubmitting
	ModeDone
	ModeAborted
)

// resultMsg carries the outcome of a sign-in attempt.
type resultMsg struct {
	user *model.User
	err  error
}

// input holds the form values. The form keeps pointers into it, so it
// must survive copies of Model.
type input struct {
	email string
	pass  string
}

// Model is the sign-in form.
type Model struct {
	mode    Mode
	auth    Authenticator
	form    *huh.Form
	spinner spinner.Model
	in      *input
	err     string
	user    *model.User
	width   int
}

// New creates a sign-in form. email pre-fills the address field.
func New(auth Authenticator, email string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		auth:    auth,
		spinner: sp,
		in:      &input{email: email},
		width:   60,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.in.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.in.pass).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.width)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form, then the sign-in request.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.mode = ModeAborted
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = min(msg.Width-4, 80)

	case resultMsg:
		if msg.err != nil {
			m.err = api.Message(msg.err, "Sign-in failed")
			m.in.pass = ""
			m.mode = ModeForm
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.user = msg.user
		m.mode = ModeDone
		return m, tea.Quit

	case spinner.TickMsg:
		if m.mode == ModeSubmitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeSubmitting
		m.err = ""
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		m.mode = ModeAborted
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	auth := m.auth
	creds := service.Credentials{Email: strings.TrimSpace(m.in.email), Password: m.in.pass}
	return func() tea.Msg {
		u, err := auth.Login(context.Background(), creds)
		return resultMsg{user: u, err: err}
	}
}

// View renders the form or the progress line.
func (m Model) View() string {
	title := theme.HeaderStyle.Render("Sign in to taskhub")

	var body string
	switch m.mode {
	case ModeSubmitting:
		body = fmt.Sprintf("%s Signing in as %s...", m.spinner.View(), m.in.email)
	case ModeDone:
		body = fmt.Sprintf("Signed in as %s.", m.user.Email)
	case ModeAborted:
		body = theme.HelpStyle.Render("Cancelled.")
	default:
		body = m.form.View()
		if m.err != "" {
			body = lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.err), body)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, "", body) + "\n"
}

// User returns the signed-in user once the flow is done.
func (m Model) User() (*model.User, error) {
	switch m.mode {
	case ModeDone:
		return m.user, nil
	case ModeAborted:
		return nil, ErrAborted
	}
	return nil, errors.New("sign-in not finished")
}

// ErrAborted is returned when the user cancels the form.
var ErrAborted = errors.New("sign-in cancelled")

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("Email is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("Enter a valid email address")
	}
	return nil
}
