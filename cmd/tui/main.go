package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/moneo-app/moneo/cmd/tui/internal/view"
	"github.com/moneo-app/moneo/internal/config"
	"github.com/moneo-app/moneo/internal/database"
	"github.com/moneo-app/moneo/internal/entity"
	"github.com/moneo-app/moneo/internal/localstore"
	"github.com/moneo-app/moneo/internal/lock"
	"github.com/moneo-app/moneo/internal/store/postgres"
	"github.com/moneo-app/moneo/internal/syncer"
)

type model struct {
	syncService *syncer.Service
	layer       *localstore.Layer
	snapshot    *localstore.Snapshot
	userID      uuid.UUID

	currentView View

	conflictsView view.ConflictsModel
	backupView    view.BackupModel
}

type View int

const (
	ViewMenu      View = 0
	ViewConflicts View = 1
	ViewBackup    View = 2
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	userID, err := uuid.Parse(cfg.Sync.UserID)
	if err != nil {
		slog.Error("SYNC_USER_ID must be set to a valid user id", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	syncSvc := syncer.NewService(postgres.New(db), lock.NewKeyed())

	var snapshot *localstore.Snapshot

	layer := localstore.New(
		localstore.NewDirMedium(cfg.Sync.SnapshotDir),
		func() *localstore.Snapshot { return snapshot },
	).WithDelay(cfg.Sync.AutosaveDelay)

	snapshot = layer.Load()
	if snapshot == nil {
		snapshot = &localstore.Snapshot{Collections: map[string][]*entity.Record{}}
	}

	return model{
		syncService:   syncSvc,
		layer:         layer,
		snapshot:      snapshot,
		userID:        userID,
		currentView:   ViewMenu,
		conflictsView: view.NewConflictsModel(syncSvc, layer, snapshot, userID),
		backupView:    view.NewBackupModel(layer),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				m.layer.Close()
				return m, tea.Quit
			case "1":
				m.currentView = ViewConflicts
				m.conflictsView = view.NewConflictsModel(m.syncService, m.layer, m.snapshot, m.userID)

				return m, m.conflictsView.Init()
			case "2":
				m.currentView = ViewBackup
				m.backupView = view.NewBackupModel(m.layer)

				return m, m.backupView.Init()
			}

			return m, nil
		}

	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewConflicts:
		var updated tea.Model
		updated, cmd = m.conflictsView.Update(msg)
		m.conflictsView = updated.(view.ConflictsModel)

	case ViewBackup:
		var updated tea.Model
		updated, cmd = m.backupView.Update(msg)
		m.backupView = updated.(view.BackupModel)
	}

	return m, cmd
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	menuStyle  = lipgloss.NewStyle().Padding(1, 2)
)

func (m model) View() string {
	switch m.currentView {
	case ViewConflicts:
		return m.conflictsView.View()
	case ViewBackup:
		return m.backupView.View()
	}

	return menuStyle.Render(
		titleStyle.Render("Moneo Sync") + "\n\n" +
			"1. Review conflicts\n" +
			"2. Back up local snapshot\n\n" +
			"q: quit",
	)
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("tui failed", "error", err)
		os.Exit(1)
	}
}
