package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/session"
	"github.com/benaskins/keygate/internal/vault"
)

// messages posted by the flow bridge

type showGateMsg struct {
	gate *applock.Gate
	emit func(session.Event)
}

type showPickerMsg struct {
	refs []vault.Ref
	emit func(session.Event)
}

type showUnlockerMsg struct {
	ref      vault.Ref
	timeout  time.Duration
	remember bool
	loader   vault.Loader
	keys     secrets.Store
	emit     func(session.Event)

	// notify posts a message back onto the program loop; load callbacks
	// run on the loader's goroutine and must not touch the screen.
	notify func(tea.Msg)
}

type showBrowserMsg struct {
	store      vault.Store
	serviceIDs []string
	emit       func(session.Event)
}

type dismissMsg struct{}

// unlockResultMsg reports a load attempt back to the unlock screen.
type unlockResultMsg struct {
	kind vault.FailKind
	err  bool
}

// screen is one interactive child flow's view.
type screen interface {
	Update(msg tea.Msg) (screen, tea.Cmd)
	View(width int) string
}

// --- gate screen ---

type gateScreen struct {
	gate     *applock.Gate
	emit     func(session.Event)
	input    textinput.Model
	err      string
	unlocked bool
}

// gateTickMsg polls for an unlock that happened off-screen, such as a
// biometric challenge completing in the background.
type gateTickMsg struct{}

func gateWatch() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg { return gateTickMsg{} })
}

func newGateScreen(msg showGateMsg) *gateScreen {
	inp := textinput.New()
	inp.Placeholder = "passcode"
	inp.EchoMode = textinput.EchoPassword
	inp.Prompt = "> "
	inp.Focus()
	return &gateScreen{gate: msg.gate, emit: msg.emit, input: inp}
}

func (s *gateScreen) emitUnlocked() {
	if !s.unlocked {
		s.unlocked = true
		s.emit(session.GateUnlocked{})
	}
}

func (s *gateScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case gateTickMsg:
		if s.gate.IsUnlocked() {
			s.emitUnlocked()
			return s, nil
		}
		return s, gateWatch()

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			s.emit(session.GateCanceled{})
			return s, nil
		case "enter":
			err := s.gate.SubmitPasscode(s.input.Value())
			s.input.SetValue("")
			switch {
			case err == nil:
				s.emitUnlocked()
			case errors.Is(err, applock.ErrPasscodeMismatch):
				s.err = "wrong passcode"
			default:
				s.err = err.Error()
			}
			return s, nil
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *gateScreen) View(width int) string {
	b := titleStyle.Render("Unlock keygate") + "\n\n" + s.input.View()
	if s.err != "" {
		b += "\n" + errStyle.Render(s.err)
	}
	return b + "\n\n" + helpStyle.Render("enter submit · esc cancel")
}

// --- vault picker ---

type vaultItem struct{ ref vault.Ref }

func (i vaultItem) Title() string { return i.ref.Name }
func (i vaultItem) Description() string {
	if i.ref.Missing {
		return i.ref.String() + " (missing)"
	}
	return i.ref.String()
}
func (i vaultItem) FilterValue() string { return i.ref.Name + " " + i.ref.String() }

type pickerScreen struct {
	emit func(session.Event)
	list list.Model
}

func newPickerScreen(msg showPickerMsg) *pickerScreen {
	items := make([]list.Item, 0, len(msg.refs))
	for _, r := range msg.refs {
		items = append(items, vaultItem{ref: r})
	}
	lst := list.New(items, list.NewDefaultDelegate(), 48, 14)
	lst.Title = "Choose a vault"
	lst.SetShowStatusBar(false)
	lst.SetShowHelp(false)
	return &pickerScreen{emit: msg.emit, list: lst}
}

func (s *pickerScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			s.emit(session.ChildCanceled{})
			return s, nil
		case "enter":
			if it, ok := s.list.SelectedItem().(vaultItem); ok {
				s.emit(session.VaultPicked{Ref: it.ref})
			}
			return s, nil
		}
	}
	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *pickerScreen) View(width int) string {
	s.list.SetWidth(width)
	return s.list.View() + "\n" + helpStyle.Render("enter select · esc cancel")
}

// --- unlock prompt ---

type unlockScreen struct {
	msg     showUnlockerMsg
	input   textinput.Model
	pending *vault.Pending
	loading bool
	err     string
}

func newUnlockScreen(msg showUnlockerMsg) *unlockScreen {
	inp := textinput.New()
	inp.Placeholder = "master password"
	inp.EchoMode = textinput.EchoPassword
	inp.Prompt = "> "
	inp.Focus()
	return &unlockScreen{msg: msg, input: inp}
}

func (s *unlockScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case unlockResultMsg:
		s.loading = false
		s.pending = nil
		if msg.err {
			switch msg.kind {
			case vault.FailInvalidKey:
				s.err = "wrong master password"
			case vault.FailCanceled:
				s.err = "unlock cancelled"
			default:
				s.err = "vault could not be opened"
			}
		}
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if s.loading {
				// First esc cancels the in-flight attempt; the result
				// message clears the loading state.
				s.pending.Cancel()
				return s, nil
			}
			s.msg.emit(session.UnlockerBackedOut{})
			return s, nil
		case "enter":
			if s.loading {
				return s, nil
			}
			s.startLoad(s.input.Value())
			s.input.SetValue("")
			return s, nil
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

// cancelPending aborts any in-flight load attempt. Called by the root
// model when the screen is dismissed mid-attempt.
func (s *unlockScreen) cancelPending() { s.pending.Cancel() }

// startLoad runs one attempt. The entered key is scoped to the attempt
// and wiped when it completes; on success it is first cached if the
// vault's policy allows reuse.
func (s *unlockScreen) startLoad(password string) {
	s.loading = true
	s.err = ""
	key := vault.NewKey([]byte(password))
	m := s.msg

	s.pending = m.loader.Load(context.Background(), m.ref, key, vault.ReadOnly, m.timeout, vault.Callbacks{
		OnSuccess: func(store vault.Store, warnings []string) {
			if m.remember {
				_ = m.keys.Put(m.ref, key.Bytes())
			}
			key.Wipe()
			m.notify(unlockResultMsg{})
			m.emit(session.UnlockSucceeded{Ref: m.ref, Store: store})
		},
		OnFailure: func(kind vault.FailKind) {
			key.Wipe()
			m.notify(unlockResultMsg{kind: kind, err: true})
			m.emit(session.UnlockFailed{Kind: kind})
		},
	})
}

func (s *unlockScreen) View(width int) string {
	b := titleStyle.Render(fmt.Sprintf("Unlock %s", s.msg.ref.Name)) + "\n\n" + s.input.View()
	if s.loading {
		b += "\n" + helpStyle.Render("opening vault…")
	}
	if s.err != "" {
		b += "\n" + errStyle.Render(s.err)
	}
	return b + "\n\n" + helpStyle.Render("enter unlock · esc back")
}

// --- entry browser ---

type entryItem struct{ item vault.Item }

func (i entryItem) Title() string       { return i.item.Title }
func (i entryItem) Description() string { return i.item.Username }
func (i entryItem) FilterValue() string { return i.item.Title + " " + i.item.Username }

type browserScreen struct {
	emit     func(session.Event)
	input    textinput.Model
	list     list.Model
	allItems []vault.Item
}

func newBrowserScreen(msg showBrowserMsg) *browserScreen {
	inp := textinput.New()
	inp.Placeholder = "filter"
	inp.Prompt = "> "
	inp.Focus()

	// Best matches for the requested services first; fall back to the
	// whole visible store when nothing matches.
	items := msg.store.Search(msg.serviceIDs)
	if len(items) == 0 {
		items = msg.store.Search(nil)
	}

	s := &browserScreen{emit: msg.emit, input: inp, allItems: items}
	s.list = list.New(nil, list.NewDefaultDelegate(), 48, 14)
	s.list.Title = "Choose an entry"
	s.list.SetShowStatusBar(false)
	s.list.SetFilteringEnabled(false)
	s.list.SetShowHelp(false)
	s.refreshFiltered()
	return s
}

func (s *browserScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			s.emit(session.BrowserLeft{})
			return s, nil
		case "enter":
			if it, ok := s.list.SelectedItem().(entryItem); ok {
				s.emit(session.EntryChosen{Item: it.item})
			}
			return s, nil
		}
	}
	var cmd1 tea.Cmd
	s.input, cmd1 = s.input.Update(msg)
	s.refreshFiltered()
	var cmd2 tea.Cmd
	s.list, cmd2 = s.list.Update(msg)
	return s, tea.Batch(cmd1, cmd2)
}

func (s *browserScreen) refreshFiltered() {
	q := strings.ToLower(strings.TrimSpace(s.input.Value()))
	items := make([]list.Item, 0, len(s.allItems))
	for _, it := range s.allItems {
		h := strings.ToLower(it.Title + " " + it.Username)
		if q == "" || strings.Contains(h, q) {
			items = append(items, entryItem{item: it})
		}
	}
	_ = s.list.SetItems(items)
}

func (s *browserScreen) View(width int) string {
	s.list.SetWidth(width)
	return s.input.View() + "\n" + s.list.View() + "\n" + helpStyle.Render("enter fill · esc leave vault")
}
