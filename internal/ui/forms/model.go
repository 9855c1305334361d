package forms

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/theme"
)

// Kind selects which form is shown.
type Kind int

const (
	KindNone Kind = iota
	KindLogin
	KindCustom
	KindDelete
)

// LoginSubmittedMsg carries the credentials entered in the login form.
type LoginSubmittedMsg struct {
	Address  string
	Password string
}

// CustomSubmittedMsg carries the identity entered in the custom address form.
type CustomSubmittedMsg struct {
	Username string
	Domain   string
	Password string
}

// DeleteConfirmedMsg is dispatched when the user confirms account deletion.
type DeleteConfirmedMsg struct{}

// CancelMsg is dispatched when the user aborts or declines a form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	address  string
	username string
	domain   string
	password string
	confirm  bool
}

// Model is the Bubble Tea model for the session forms.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	kind    Kind
	domains []model.Domain
	current string
	width   int
	height  int
}

// New creates a new forms model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetDomains sets the domains offered by the custom address form.
func (m *Model) SetDomains(domains []model.Domain) {
	m.domains = domains
}

// Kind returns the form currently shown.
func (m Model) Kind() Kind {
	return m.kind
}

// StartLogin shows the login form, optionally prefilled with address.
func (m *Model) StartLogin(address string) tea.Cmd {
	m.reset(KindLogin)
	m.fb.address = address
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Address").
				Placeholder("name@domain").
				Value(&m.fb.address).
				Validate(validateAddress),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
	return m.form.Init()
}

// StartCustom shows the custom address form. At least one domain must
// have been set.
func (m *Model) StartCustom() tea.Cmd {
	m.reset(KindCustom)

	opts := make([]huh.Option[string], 0, len(m.domains))
	for _, d := range m.domains {
		opts = append(opts, huh.NewOption("@"+d.Domain, d.Domain))
	}
	if len(m.domains) > 0 {
		m.fb.domain = m.domains[0].Domain
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Placeholder("local part, without @").
				Value(&m.fb.username).
				Validate(validateUsername),
			huh.NewSelect[string]().
				Title("Domain").
				Options(opts...).
				Value(&m.fb.domain),
			huh.NewInput().
				Title("Password").
				Description(fmt.Sprintf("At least %d characters", session.MinPasswordLength)).
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validatePassword),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
	return m.form.Init()
}

// StartDelete asks for confirmation before deleting address.
func (m *Model) StartDelete(address string) tea.Cmd {
	m.reset(KindDelete)
	m.current = address
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Delete " + address + "?").
				Description("The mailbox and all its messages are removed from the server.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
	return m.form.Init()
}

func (m *Model) reset(kind Kind) {
	m.kind = kind
	m.current = ""
	*m.fb = formBindings{}
}

// Update handles messages for the active form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		submit := m.submit()
		m.form = nil
		m.kind = KindNone
		return m, submit
	case huh.StateAborted:
		m.form = nil
		m.kind = KindNone
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

func (m Model) submit() tea.Cmd {
	fb := *m.fb
	switch m.kind {
	case KindLogin:
		return func() tea.Msg {
			return LoginSubmittedMsg{Address: strings.TrimSpace(fb.address), Password: fb.password}
		}
	case KindCustom:
		return func() tea.Msg {
			return CustomSubmittedMsg{
				Username: strings.TrimSpace(fb.username),
				Domain:   fb.domain,
				Password: fb.password,
			}
		}
	case KindDelete:
		if fb.confirm {
			return func() tea.Msg { return DeleteConfirmedMsg{} }
		}
	}
	return func() tea.Msg { return CancelMsg{} }
}

// View renders the active form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	var titleText string
	switch m.kind {
	case KindLogin:
		titleText = "Log In"
	case KindCustom:
		titleText = "Custom Address"
	case KindDelete:
		titleText = "Delete Account"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateAddress(s string) error {
	if _, _, ok := model.SplitAddress(strings.TrimSpace(s)); !ok {
		return fmt.Errorf("enter a full address like name@domain")
	}
	return nil
}

func validateUsername(s string) error {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return fmt.Errorf("Username is required")
	case strings.Contains(s, "@"):
		return fmt.Errorf("enter the part before @ only")
	}
	return nil
}

func validatePassword(s string) error {
	if len(s) < session.MinPasswordLength {
		return fmt.Errorf("must be at least %d characters", session.MinPasswordLength)
	}
	return nil
}
