package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/rlsnotes/pkg/client"
	"github.com/naveenspark/rlsnotes/pkg/domain"
)

// AuthService is the session source the view reads identity from.
// *session.Manager satisfies it.
type AuthService interface {
	GetSession(ctx context.Context) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// NoteService creates and lists the caller's notes.
// *notes.Service satisfies it.
type NoteService interface {
	Create(ctx context.Context, draft domain.NoteDraft) error
	List(ctx context.Context) ([]domain.Note, error)
}

// User-facing alert texts.
const (
	signedUpAlert = "Signed up! If email confirmation is ON, check your email."
	noTitle       = "(no title)"
)

func failureAlert(action string, err error) string {
	return action + " failed: " + client.Reason(err)
}

type focus int

const (
	focusEmail focus = iota
	focusPassword
	focusTitle
	focusContent
	focusList
)

// op is a user-triggered remote operation. While one is pending the
// controls that could start another are disabled.
type op int

const (
	opNone op = iota
	opSignUp
	opSignIn
	opSignOut
	opCreate
)

func (o op) String() string {
	switch o {
	case opSignUp:
		return "signing up"
	case opSignIn:
		return "signing in"
	case opSignOut:
		return "signing out"
	case opCreate:
		return "adding note"
	}
	return ""
}

// sessionLoadedMsg carries the result of the initial GetSession.
type sessionLoadedMsg struct {
	session *domain.Session
	err     error
}

// authEventMsg delivers one auth-state change from the subscription.
type authEventMsg struct {
	event domain.AuthEvent
}

// notesLoadedMsg carries a reload result. seq identifies the reload so
// results overtaken by a newer reload or an auth change are dropped.
type notesLoadedMsg struct {
	seq   int
	notes []domain.Note
	err   error
}

type signedUpMsg struct {
	result *domain.SignUpResult
	err    error
}

type signedInMsg struct {
	err error
}

type signedOutMsg struct {
	err error
}

type noteCreatedMsg struct {
	err error
}

type copyResultMsg struct {
	id  int64
	err error
}

// App is the root Bubbletea model: the session-bound note view.
type App struct {
	auth  AuthService
	notes NoteService
	keys  KeyMap
	copy  func(string) error

	// session is the tracked identity. It only ever changes from the
	// initial GetSession result or from auth events.
	session  *domain.Session
	authSeen bool

	list      []domain.Note
	cursor    int
	reloadSeq int
	loading   bool

	pending op
	alerts  []string
	status  string

	email    textinput.Model
	password textinput.Model
	title    textinput.Model
	content  textarea.Model
	focus    focus
	spinner  spinner.Model

	width  int
	height int
}

// NewApp creates the note view.
func NewApp(auth AuthService, notes NoteService) App {
	email := textinput.New()
	email.Placeholder = "email"
	email.Prompt = "> "
	email.PromptStyle = inputPromptStyle
	email.PlaceholderStyle = inputPlaceholderStyle
	email.CharLimit = 320

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "> "
	password.PromptStyle = inputPromptStyle
	password.PlaceholderStyle = inputPlaceholderStyle
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	title := textinput.New()
	title.Placeholder = "title"
	title.Prompt = "> "
	title.PromptStyle = inputPromptStyle
	title.PlaceholderStyle = inputPlaceholderStyle
	title.CharLimit = maxInputLen

	content := textarea.New()
	content.Placeholder = "content"
	content.ShowLineNumbers = false
	content.CharLimit = maxInputLen
	content.SetHeight(4)

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(accentStyle),
	)

	a := App{
		auth:     auth,
		notes:    notes,
		keys:     DefaultKeyMap,
		copy:     clipboard.WriteAll,
		email:    email,
		password: password,
		title:    title,
		content:  content,
		spinner:  sp,
	}
	a.setFocus(focusEmail)
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.loadSession())
}

func (a App) loadSession() tea.Cmd {
	auth := a.auth
	return func() tea.Msg {
		s, err := auth.GetSession(context.Background())
		return sessionLoadedMsg{session: s, err: err}
	}
}

// reload starts a full re-fetch of the note list.
func (a *App) reload() tea.Cmd {
	a.reloadSeq++
	a.loading = true
	return tea.Batch(a.spinner.Tick, a.listCmd(a.reloadSeq))
}

func (a App) listCmd(seq int) tea.Cmd {
	svc := a.notes
	return func() tea.Msg {
		notes, err := svc.List(context.Background())
		return notesLoadedMsg{seq: seq, notes: notes, err: err}
	}
}

func (a App) signedIn() bool {
	return a.session != nil
}

func (a App) busy() bool {
	return a.pending != opNone || a.loading
}

// setIdentity replaces the tracked session. Moving between signed in and
// signed out resets focus to the first field of the new form.
func (a *App) setIdentity(s *domain.Session) tea.Cmd {
	wasIn := a.signedIn()
	a.session = s
	if wasIn == a.signedIn() {
		return nil
	}
	if a.signedIn() {
		return a.setFocus(focusTitle)
	}
	return a.setFocus(focusEmail)
}

// applySession replaces the identity and brings the list in line with it:
// reload when signed in, clear when not.
func (a *App) applySession(s *domain.Session) tea.Cmd {
	focusCmd := a.setIdentity(s)
	if s == nil {
		// Invalidate any reload still in flight for the old identity.
		a.reloadSeq++
		a.loading = false
		a.list = nil
		a.cursor = 0
		return focusCmd
	}
	return tea.Batch(focusCmd, a.reload())
}

func (a *App) alert(msg string) {
	a.alerts = append(a.alerts, msg)
}

func (a *App) start(o op, cmd tea.Cmd) tea.Cmd {
	a.pending = o
	a.status = ""
	return tea.Batch(a.spinner.Tick, cmd)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		inputWidth := msg.Width - 6
		if inputWidth < 10 {
			inputWidth = 10
		}
		a.email.Width = inputWidth
		a.password.Width = inputWidth
		a.title.Width = inputWidth
		a.content.SetWidth(inputWidth)
		return a, nil

	case spinner.TickMsg:
		if !a.busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case sessionLoadedMsg:
		if msg.err != nil {
			a.alert(failureAlert("Session restore", msg.err))
		}
		// An auth event already told us something newer.
		if a.authSeen {
			return a, nil
		}
		if msg.session == nil {
			return a, a.setIdentity(nil)
		}
		return a, a.applySession(msg.session)

	case authEventMsg:
		a.authSeen = true
		return a, a.applySession(msg.event.Session)

	case notesLoadedMsg:
		if msg.seq != a.reloadSeq {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			a.alert(failureAlert("Read", msg.err))
			return a, nil
		}
		a.list = msg.notes
		if a.cursor >= len(a.list) {
			a.cursor = max(len(a.list)-1, 0)
		}
		return a, nil

	case signedUpMsg:
		a.pending = opNone
		if msg.err != nil {
			a.alert(failureAlert("Sign up", msg.err))
			return a, nil
		}
		a.alert(signedUpAlert)
		return a, nil

	case signedInMsg:
		a.pending = opNone
		if msg.err != nil {
			a.alert(failureAlert("Sign in", msg.err))
		}
		// On success the SIGNED_IN event carries the session and the reload.
		return a, nil

	case signedOutMsg:
		a.pending = opNone
		if msg.err != nil {
			a.alert(failureAlert("Sign out", msg.err))
		}
		return a, nil

	case noteCreatedMsg:
		a.pending = opNone
		if msg.err != nil {
			a.alert(failureAlert("Insert", msg.err))
			return a, nil
		}
		a.title.Reset()
		a.content.Reset()
		if !a.signedIn() {
			return a, nil
		}
		return a, a.reload()

	case copyResultMsg:
		if msg.err != nil {
			a.status = errorStyle.Render("copy failed: " + msg.err.Error())
		} else {
			a.status = accentStyle.Render(fmt.Sprintf("copied note %d", msg.id))
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKeys(msg)
	}

	return a.updateFocused(msg)
}

func (a App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}

	// Alerts are modal.
	if len(a.alerts) > 0 {
		if key.Matches(msg, a.keys.Dismiss) {
			a.alerts = a.alerts[1:]
		}
		return a, nil
	}

	// Controls stay disabled until the pending operation completes.
	if a.pending != opNone {
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.NextField):
		return a, a.cycleFocus(1)
	case key.Matches(msg, a.keys.PrevField):
		return a, a.cycleFocus(-1)
	}

	if !a.signedIn() {
		switch {
		case key.Matches(msg, a.keys.SignUp):
			return a, a.start(opSignUp, a.signUpCmd())
		case key.Matches(msg, a.keys.SignIn):
			if a.focus == focusEmail {
				return a, a.setFocus(focusPassword)
			}
			return a, a.start(opSignIn, a.signInCmd())
		}
		return a.updateFocused(msg)
	}

	switch {
	case key.Matches(msg, a.keys.SignOut):
		return a, a.start(opSignOut, a.signOutCmd())
	case key.Matches(msg, a.keys.Submit):
		return a, a.start(opCreate, a.createCmd())
	}

	if a.focus == focusList {
		switch {
		case key.Matches(msg, a.keys.QuitList):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Up):
			if a.cursor > 0 {
				a.cursor--
			}
		case key.Matches(msg, a.keys.Down):
			if a.cursor < len(a.list)-1 {
				a.cursor++
			}
		case key.Matches(msg, a.keys.Reload):
			if !a.loading {
				return a, a.reload()
			}
		case key.Matches(msg, a.keys.Copy):
			if a.cursor < len(a.list) {
				n := a.list[a.cursor]
				write := a.copy
				return a, func() tea.Msg {
					return copyResultMsg{id: n.ID, err: write(n.ContentOr(""))}
				}
			}
		}
		return a, nil
	}

	return a.updateFocused(msg)
}

// updateFocused forwards msg to the focused input.
func (a App) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.focus {
	case focusEmail:
		a.email, cmd = a.email.Update(msg)
	case focusPassword:
		a.password, cmd = a.password.Update(msg)
	case focusTitle:
		a.title, cmd = a.title.Update(msg)
	case focusContent:
		a.content, cmd = a.content.Update(msg)
	}
	return a, cmd
}

func (a App) fields() []focus {
	if a.signedIn() {
		return []focus{focusTitle, focusContent, focusList}
	}
	return []focus{focusEmail, focusPassword}
}

func (a *App) cycleFocus(step int) tea.Cmd {
	fields := a.fields()
	idx := 0
	for i, f := range fields {
		if f == a.focus {
			idx = i
			break
		}
	}
	idx = (idx + step + len(fields)) % len(fields)
	return a.setFocus(fields[idx])
}

func (a *App) setFocus(f focus) tea.Cmd {
	a.focus = f
	a.email.Blur()
	a.password.Blur()
	a.title.Blur()
	a.content.Blur()
	switch f {
	case focusEmail:
		return a.email.Focus()
	case focusPassword:
		return a.password.Focus()
	case focusTitle:
		return a.title.Focus()
	case focusContent:
		return a.content.Focus()
	}
	return nil
}

func (a App) signUpCmd() tea.Cmd {
	auth, email, pw := a.auth, a.email.Value(), a.password.Value()
	return func() tea.Msg {
		res, err := auth.SignUp(context.Background(), email, pw)
		return signedUpMsg{result: res, err: err}
	}
}

func (a App) signInCmd() tea.Cmd {
	auth, email, pw := a.auth, a.email.Value(), a.password.Value()
	return func() tea.Msg {
		return signedInMsg{err: auth.SignIn(context.Background(), email, pw)}
	}
}

func (a App) signOutCmd() tea.Cmd {
	auth := a.auth
	return func() tea.Msg {
		return signedOutMsg{err: auth.SignOut(context.Background())}
	}
}

func (a App) createCmd() tea.Cmd {
	svc := a.notes
	draft := domain.NoteDraft{Title: a.title.Value(), Content: a.content.Value()}
	return func() tea.Msg {
		return noteCreatedMsg{err: svc.Create(context.Background(), draft)}
	}
}

func (a App) View() string {
	header := renderLogo()
	if pad := (a.width - lipgloss.Width(header)) / 2; pad > 0 {
		header = strings.Repeat(" ", pad) + header
	}

	var body, help string
	if a.signedIn() {
		body = a.notesView()
		bindings := []key.Binding{a.keys.NextField, a.keys.Submit, a.keys.SignOut}
		if a.focus == focusList {
			bindings = append(bindings, a.keys.Down, a.keys.Copy, a.keys.Reload, a.keys.QuitList)
		}
		help = helpBar(append(bindings, a.keys.Quit)...)
	} else {
		body = a.authView()
		help = helpBar(a.keys.NextField, a.keys.SignIn, a.keys.SignUp, a.keys.Quit)
	}

	// Chrome: header(2) + status(1) + help(1)
	chrome := 4
	if len(a.alerts) > 0 {
		body = renderAlert(a.alerts[0], a.width, a.height-chrome)
		help = " " + helpEntry("enter", "dismiss")
	}
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n\n%s\n%s\n%s", header, body, a.statusLine(), help)
}

func (a App) statusLine() string {
	switch {
	case a.pending != opNone:
		return " " + a.spinner.View() + dimStyle.Render(a.pending.String()+"...")
	case a.loading:
		return " " + a.spinner.View() + dimStyle.Render("loading notes...")
	case a.status != "":
		return " " + a.status
	}
	return ""
}

func (a App) authView() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Auth") + "\n\n")
	b.WriteString(a.email.View() + "\n")
	b.WriteString(a.password.View() + "\n\n")
	b.WriteString(dimStyle.Render("After sign-in, create notes and check that only your own are listed."))
	return b.String()
}

func (a App) notesView() string {
	var b strings.Builder
	who := a.session.User.Email
	if who == "" {
		who = a.session.User.ID.String()
	}
	fmt.Fprintf(&b, "%s %s\n\n", sectionHeaderStyle.Render("Logged in"), dimStyle.Render("as "+who))
	b.WriteString(a.title.View() + "\n")
	b.WriteString(a.content.View() + "\n\n")

	listHeader := "Notes (should be ONLY yours)"
	if a.focus == focusList {
		b.WriteString(selectedStyle.Render(listHeader) + "\n")
	} else {
		b.WriteString(sectionHeaderStyle.Render(listHeader) + "\n")
	}
	if len(a.list) == 0 {
		b.WriteString(metaStyle.Render("  no notes yet") + "\n")
		return b.String()
	}

	textWidth := a.width - 4
	if textWidth < 20 {
		textWidth = 20
	}
	for i, n := range a.list {
		title := normalStyle.Bold(true).Render(truncStr(oneLine(n.TitleOr(noTitle)), textWidth))
		content := dimStyle.Render(truncStr(oneLine(n.ContentOr("")), textWidth))
		meta := fmt.Sprintf("id: %d | user_id: %s", n.ID, n.UserID)
		if n.CreatedAt != nil {
			meta += " | " + formatTime(*n.CreatedAt)
		}
		row := fmt.Sprintf("%s\n  %s\n  %s", title, content, metaStyle.Render(meta))

		prefix := "  "
		if a.focus == focusList && i == a.cursor {
			prefix = accentStyle.Render("> ")
			row = selectedRowBg.Render(row)
		}
		b.WriteString(prefix + row + "\n")
	}
	return b.String()
}
