package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tasklist/model"
	"tasklist/tui"
)

func runInteractive(ctx context.Context, e *env) error {
	notifications := make(chan model.Notification, 16)
	c, err := e.open(func(n model.Notification) {
		select {
		case notifications <- n:
		default:
			e.log.Warn("reminder dropped, UI is not keeping up", zap.String("task", n.TaskID))
		}
	})
	if err != nil {
		return err
	}
	defer c.Close()

	armed := c.svc.Start()
	status := ""
	if c.loadErr != nil {
		status = fmt.Sprintf("Stored tasks could not be read as is: %v", c.loadErr)
	}
	e.log.Info("interactive session started", zap.Int("tasks", len(c.svc.List())), zap.Int("armed", armed))

	m := tui.NewModel(c.svc, tui.Options{
		Views:         c.adapter,
		View:          c.adapter.LoadView(),
		Categories:    c.cfg.Categories,
		ErrorDismiss:  c.cfg.UI.ErrorDismiss,
		Notifications: notifications,
		Clock:         e.clock,
		StartupStatus: status,
		Logger:        e.log,
	})
	defer m.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Quitting the UI ends the session, including the watcher.
		defer cancel()
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil {
			if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("terminal UI failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.watchExternalChanges(gctx); err != nil {
			e.log.Warn("file watcher stopped", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
