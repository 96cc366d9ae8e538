package view

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/moneo-app/moneo/internal/localstore"
)

type backupState int

const (
	backupStateConfirm backupState = iota
	backupStateResult
)

// BackupModel writes a timestamped copy of the local snapshot on request.
type BackupModel struct {
	CommonModel
	layer *localstore.Layer

	state   backupState
	form    *huh.Form
	confirm bool
	name    string
	err     error
}

func NewBackupModel(layer *localstore.Layer) BackupModel {
	m := BackupModel{layer: layer, state: backupStateConfirm}
	m.form = m.buildConfirmForm()

	return m
}

func (m BackupModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m BackupModel) buildConfirmForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title("Write a timestamped backup of the local snapshot?"),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m BackupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m, Back
	}

	switch m.state {
	case backupStateConfirm:
		form, cmd := m.form.Update(msg)
		if f, ok := form.(*huh.Form); ok {
			m.form = f
		}

		if m.form.State != huh.StateCompleted {
			return m, cmd
		}

		m.state = backupStateResult
		m.confirm = m.form.GetBool("confirm")

		if m.confirm {
			m.name, m.err = m.layer.Backup()
		}

		return m, nil

	case backupStateResult:
		return m, nil
	}

	return m, nil
}

func (m BackupModel) View() string {
	if m.state == backupStateConfirm {
		return paddedStyle.Render(m.form.View())
	}

	if m.err != nil {
		return paddedStyle.Render(errorStyle.Render(fmt.Sprintf("Backup failed: %v", m.err)))
	}

	if !m.confirm {
		return paddedStyle.Render("Backup skipped.\n\nEsc: back to menu")
	}

	return paddedStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("Backup written"),
		"",
		m.name,
		"",
		"Esc: back to menu",
	))
}
