package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"conntree/internal/config"
	"conntree/internal/controller"
	"conntree/internal/logging"
	"conntree/internal/persist"
	"conntree/internal/services"
	"conntree/internal/state"
	"conntree/internal/tree"
	"conntree/internal/ui"
)

type Options struct {
	Config     config.Config
	ConfigPath string
	DryRun     bool
	// Status is shown in the status line at startup, e.g. a config warning.
	Status string
}

type sessionManager interface {
	services.SessionManager
	CloseAll()
}

// Run loads the connection tree, starts the TUI and saves on exit.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	logger, closeLog := openLogger(cfg)
	defer closeLog()

	store, lastSelected, err := LoadTree(cfg.ConnectionsFile)
	if err != nil {
		return err
	}

	importer := services.NewPuttyImporter(cfg.PuttySessionsDir)
	if result, err := importer.Import(ctx); err != nil {
		logger.Warn("putty import failed", "dir", importer.Dir(), "error", err)
	} else if len(result.Sessions) > 0 {
		store.ReplacePuttySessions(result.Sessions)
		logger.Info("putty sessions imported", "count", len(result.Sessions), "duration", result.Duration)
	}

	var (
		sessions sessionManager
		launcher services.Launcher
		events   <-chan services.SessionEvent
	)
	if opts.DryRun {
		sessions = dryRunSessions{services.NewMockSessions()}
		launcher = services.NewMockLauncher()
	} else {
		execLauncher := services.NewExecLauncher(services.WithLauncherLogger(logger))
		local := services.NewLocalSessions(
			services.WithStarter(execLauncher),
			services.WithClients(cfg.ClientTools()),
			services.WithSessionLogger(logger),
			services.WithSessionContext(ctx),
		)
		sessions, launcher, events = local, execLauncher, local.Events()
	}

	appState := state.NewState(store, state.Preferences{Theme: cfg.Theme, SwitchToOpen: cfg.SwitchToOpen}, cfg.KeyBindings)

	var program atomic.Pointer[tea.Program]
	send := func(msg tea.Msg) {
		if running := program.Load(); running != nil {
			running.Send(msg)
		}
	}
	saver := persist.NewSaver(cfg.ConnectionsFile,
		func() persist.Document {
			return persist.Document{Tree: store.Snapshot(), LastSelected: appState.CurrentID()}
		},
		persist.WithLogger(logger),
		persist.WithErrorHandler(func(err error) {
			send(ui.ErrorMsg{Source: "Save", Err: err})
		}),
	)

	ctrl := controller.New(store,
		controller.WithPersistence(saver),
		controller.WithSessions(sessions),
		controller.WithLauncher(launcher),
		controller.WithSwitchToOpen(cfg.SwitchToOpen),
		controller.WithLogger(logger),
	)

	status := opts.Status
	opened, err := ctrl.OpenConnectionsFromLastSession(controller.Settings{
		OpenFromLastSession: cfg.OpenFromLastSession,
		NoReconnect:         cfg.NoReconnect,
	})
	if err != nil {
		status = fmt.Sprintf("Reconnect error: %v", err)
	} else if opened > 0 && status == "" {
		status = fmt.Sprintf("Reopened %d connections", opened)
	}
	if lastSelected != "" {
		appState.Select(lastSelected)
	}

	modelOpts := []ui.Option{
		ui.WithTools(cfg.ExternalTools),
		ui.WithContext(ctx),
	}
	if events != nil {
		modelOpts = append(modelOpts, ui.WithSessionEvents(events))
	}
	model := ui.NewModel(appState, ctrl, modelOpts...).WithStatus(status)
	program.Store(tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)))

	watcher := services.NewPuttyWatcher(importer, importer.Dir(),
		services.WithOnImport(func(result services.ImportResult) {
			send(ui.PuttyImportMsg{Result: result})
		}),
		services.WithOnError(func(err error) {
			logger.Warn("putty watcher", "error", err)
		}),
		services.WithWatcherLogger(logger),
	)
	if info, err := os.Stat(importer.Dir()); err == nil && info.IsDir() {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("putty watcher not started", "dir", importer.Dir(), "error", err)
		}
		defer watcher.Stop()
	}

	finalModel, runErr := program.Load().Run()

	saver.SaveAsync()
	saveErr := saver.Close()
	if saveErr != nil {
		logger.Error("final save failed", "path", saver.Path(), "error", saveErr)
	}
	sessions.CloseAll()

	if provider, ok := finalModel.(ui.ConfigProvider); ok && runErr == nil && !opts.DryRun {
		if err := savePreferences(opts.ConfigPath, provider.ConfigSnapshot()); err != nil {
			logger.Warn("config save failed", "path", opts.ConfigPath, "error", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("conntree: %w", runErr)
	}
	if saveErr != nil {
		return fmt.Errorf("save connections: %w", saveErr)
	}
	return nil
}

// LoadTree opens the connections file, or starts an empty tree when it does
// not exist yet.
func LoadTree(path string) (*tree.Store, string, error) {
	doc, err := persist.Load(path)
	if errors.Is(err, persist.ErrNoFile) {
		return tree.New(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	store, err := tree.FromIndex(doc.Tree)
	if err != nil {
		return nil, "", fmt.Errorf("load %s: %w", path, err)
	}
	return store, doc.LastSelected, nil
}

// savePreferences writes only the settings changed from the UI, keeping flag
// overrides out of the stored file.
func savePreferences(path string, snapshot config.Config) error {
	if path == "" {
		return nil
	}
	stored, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	stored.Theme = snapshot.Theme
	stored.SwitchToOpen = snapshot.SwitchToOpen
	if len(snapshot.KeyBindings) > 0 {
		stored.KeyBindings = snapshot.KeyBindings
	}
	return config.SaveConfig(path, stored)
}

func openLogger(cfg config.Config) (*slog.Logger, func()) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if cfg.LogFile == "" {
		return logging.New(level, io.Discard), func() {}
	}
	file, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return logging.New(level, io.Discard), func() {}
	}
	return logging.New(level, file), func() { file.Close() }
}

type dryRunSessions struct {
	*services.MockSessions
}

func (sessions dryRunSessions) CloseAll() {}
