package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/moneo-app/moneo/internal/localstore"
	"github.com/moneo-app/moneo/internal/syncer"
)

type conflictsState int

const (
	conflictsStateLoading conflictsState = iota
	conflictsStateReviewing
	conflictsStateResolving
	conflictsStateDone
)

// ConflictsModel walks the user through every conflict between the local
// snapshot and the remote store, one huh form at a time.
type ConflictsModel struct {
	CommonModel
	syncService *syncer.Service
	layer       *localstore.Layer
	snapshot    *localstore.Snapshot
	userID      uuid.UUID

	state   conflictsState
	spinner spinner.Model
	err     error

	queue    []syncer.ManualConflict
	current  int
	resolved int
	kept     int

	form *huh.Form
}

func NewConflictsModel(svc *syncer.Service, layer *localstore.Layer, snapshot *localstore.Snapshot, userID uuid.UUID) ConflictsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ConflictsModel{
		syncService: svc,
		layer:       layer,
		snapshot:    snapshot,
		userID:      userID,
		state:       conflictsStateLoading,
		spinner:     s,
	}
}

func (m ConflictsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

type conflictsLoadedMsg struct {
	report *syncer.Report
	err    error
}

// loadCmd previews the snapshot against the store with the MANUAL strategy so
// every conflict lands in the review queue.
func (m ConflictsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		report, err := m.syncService.Preview(ctx, m.userID, m.snapshot.Collections, syncer.StrategyManual)

		return conflictsLoadedMsg{report: report, err: err}
	}
}

type conflictResolvedMsg struct {
	choice syncer.Source
	err    error
}

func (m ConflictsModel) resolveCmd(c syncer.ManualConflict, choice syncer.Source) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.syncService.ResolveManual(ctx, m.userID, c.Type, c.ID, choice, c.Local)

		return conflictResolvedMsg{choice: choice, err: err}
	}
}

func (m ConflictsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc && m.state != conflictsStateResolving {
			return m, Back
		}

	case conflictsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = conflictsStateDone

			return m, nil
		}

		m.queue = msg.report.Manual
		if len(m.queue) == 0 {
			m.state = conflictsStateDone
			return m, nil
		}

		m.state = conflictsStateReviewing
		m.form = m.buildChoiceForm()

		return m, m.form.Init()

	case conflictResolvedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = conflictsStateDone

			return m, nil
		}

		if msg.choice == syncer.SourceLocal {
			m.resolved++
		} else {
			m.kept++
			m.acceptRemote(m.queue[m.current])
		}

		m.current++
		if m.current >= len(m.queue) {
			m.state = conflictsStateDone
			return m, nil
		}

		m.state = conflictsStateReviewing
		m.form = m.buildChoiceForm()

		return m, m.form.Init()
	}

	switch m.state {
	case conflictsStateLoading:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case conflictsStateReviewing:
		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		if m.form.State != huh.StateCompleted {
			return m, cmd
		}

		m.state = conflictsStateResolving

		choice := syncer.SourceRemote
		if m.form.GetString("choice") == "local" {
			choice = syncer.SourceLocal
		}

		return m, tea.Batch(m.spinner.Tick, m.resolveCmd(m.queue[m.current], choice))

	case conflictsStateResolving:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

// acceptRemote copies the remote version into the local snapshot and
// schedules an autosave, so the next review pass starts clean.
func (m *ConflictsModel) acceptRemote(c syncer.ManualConflict) {
	name := c.Type.Collection()

	records := m.snapshot.Collections[name]
	for i, rec := range records {
		if rec.ID == c.ID {
			records[i] = c.Remote.Clone()
			break
		}
	}

	m.layer.Touch()
}

func (m ConflictsModel) buildChoiceForm() *huh.Form {
	c := m.queue[m.current]

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("choice").
				Title(fmt.Sprintf("%s %q", c.Type, RecordLabel(c.Remote))).
				Description(FormatDiff(c)).
				Options(
					huh.NewOption("Keep local version", "local"),
					huh.NewOption("Keep remote version", "remote"),
				),
		),
	).WithWidth(70).WithShowHelp(false)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	paddedStyle = lipgloss.NewStyle().Padding(1)
)

func (m ConflictsModel) View() string {
	switch m.state {
	case conflictsStateLoading:
		return paddedStyle.Render(fmt.Sprintf("%s Comparing local snapshot against server...", m.spinner.View()))

	case conflictsStateReviewing:
		progress := fmt.Sprintf("Conflict %d of %d", m.current+1, len(m.queue))
		return paddedStyle.Render(lipgloss.JoinVertical(lipgloss.Left, progress, "", m.form.View()))

	case conflictsStateResolving:
		return paddedStyle.Render(fmt.Sprintf("%s Applying resolution...", m.spinner.View()))

	case conflictsStateDone:
		return m.viewDone()
	}

	return ""
}

func (m ConflictsModel) viewDone() string {
	if m.err != nil {
		return paddedStyle.Render(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if len(m.queue) == 0 {
		return paddedStyle.Render(headerStyle.Render("No conflicts.") + "\n\nEsc: back to menu")
	}

	return paddedStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Review complete"),
		"",
		fmt.Sprintf("Kept local: %d", m.resolved),
		fmt.Sprintf("Kept remote: %d", m.kept),
		"",
		"Esc: back to menu",
	))
}
