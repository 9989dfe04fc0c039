// Package tui implements the interactive child flows as terminal
// screens: the app-lock gate, the vault picker, the unlock prompt, and
// the entry browser. It is the reference host harness for the session
// coordinator; the coordinator itself depends only on the session
// package's flow contracts.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/session"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
)

// Flows bridges the coordinator's child-flow contracts onto a running
// bubbletea program. Starts and stops are posted through a buffered
// queue drained by a dedicated goroutine: the coordinator often reacts
// to an event emitted from the program's own update loop, so a direct
// Send would block against it. The queue keeps show and dismiss order
// intact. Nothing here touches coordinator state.
type Flows struct {
	loader  vault.Loader
	catalog *settings.Catalog
	keys    secrets.Store
	sendq   chan tea.Msg
}

// NewFlows creates the flow bridge. SetProgram must be called before the
// coordinator starts any child.
func NewFlows(loader vault.Loader, catalog *settings.Catalog, keys secrets.Store) *Flows {
	return &Flows{loader: loader, catalog: catalog, keys: keys}
}

// SetProgram attaches the running program and starts the send queue.
func (f *Flows) SetProgram(p *tea.Program) {
	f.sendq = make(chan tea.Msg, 16)
	go func() {
		for msg := range f.sendq {
			p.Send(msg)
		}
	}()
}

func (f *Flows) send(msg tea.Msg) { f.sendq <- msg }

func (f *Flows) StartGate(gate *applock.Gate, emit func(session.Event)) session.Child {
	f.send(showGateMsg{gate: gate, emit: emit})
	return &screenChild{flows: f}
}

func (f *Flows) StartPicker(refs []vault.Ref, emit func(session.Event)) session.Child {
	f.send(showPickerMsg{refs: refs, emit: emit})
	return &screenChild{flows: f}
}

func (f *Flows) StartUnlocker(ref vault.Ref, emit func(session.Event)) session.Child {
	entry, _ := f.catalog.Find(ref.Provider, ref.Descriptor)
	f.send(showUnlockerMsg{
		ref:      ref,
		timeout:  entry.Timeout(),
		remember: entry.Policy.RememberKey,
		loader:   f.loader,
		keys:     f.keys,
		emit:     emit,
		notify:   f.send,
	})
	return &screenChild{flows: f}
}

func (f *Flows) StartBrowser(store vault.Store, serviceIDs []string, emit func(session.Event)) session.Child {
	f.send(showBrowserMsg{store: store, serviceIDs: serviceIDs, emit: emit})
	return &screenChild{flows: f}
}

// screenChild detaches a screen. Dismissal is posted, never synchronous,
// per the Child contract.
type screenChild struct {
	flows   *Flows
	stopped bool
}

func (c *screenChild) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.flows.send(dismissMsg{})
}
