package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/export"
	"orderdesk/internal/storage"
	"orderdesk/internal/workflow"
)

// Service polls a drop directory and runs the extract/match flow on every
// new purchase order it finds, writing a review sheet for a human to check
// before finalizing. Processed inputs move to a done/ subdirectory so a
// crashed cycle re-picks them up.
type Service struct {
	db     *storage.DB
	cfg    config.Config
	client *backend.Client
}

func NewService(db *storage.DB, cfg config.Config, client *backend.Client) *Service {
	return &Service{db: db, cfg: cfg, client: client}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			fmt.Printf("watcher cycle error: %v\n", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(s.cfg.WatchDir, 0o755)
	}
	if err != nil {
		return err
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".pdf") && !strings.HasSuffix(name, ".eml") {
			continue
		}
		path := filepath.Join(s.cfg.WatchDir, entry.Name())
		if err := s.processFile(ctx, path); err != nil {
			fmt.Printf("watcher: %s failed: %v\n", entry.Name(), err)
			continue
		}
		processed++
	}

	if processed > 0 {
		fmt.Printf("watcher cycle done processed=%d\n", processed)
	}
	return nil
}

func (s *Service) processFile(ctx context.Context, path string) error {
	start := time.Now()
	traceID := uuid.NewString()

	w := workflow.New(s.cfg, s.client, s.db)
	defer w.Close()

	var err error
	if strings.HasSuffix(strings.ToLower(path), ".eml") {
		err = w.SelectEmailFile(path)
	} else {
		err = w.SelectFile(path)
	}
	if err != nil {
		return err
	}

	// Extract triggers the match refresh itself once items land.
	if err := w.Extract(ctx); err != nil {
		return err
	}

	items := w.Items()
	session := w.MatchSession()

	matched := 0
	if session != nil {
		matched = len(session.Selections)
	}

	if s.cfg.WatchAutoExport && session != nil {
		rows := export.ReviewRows(items, session.Results, session.Selections)
		outPath := filepath.Join(s.cfg.OutputDir, "watcher", reviewFileName(path))
		if err := export.ReviewToXLSX(rows, outPath); err != nil {
			return err
		}
	}

	counts := map[string]int{"extracted": len(items), "matched": matched}
	if s.db != nil {
		if err := s.db.InsertRun(traceID, "watcher", filepath.Base(path), counts, float64(time.Since(start).Milliseconds())); err != nil {
			fmt.Printf("watcher: run audit write failed: %v\n", err)
		}
	}

	return s.moveToDone(path)
}

func (s *Service) moveToDone(path string) error {
	doneDir := filepath.Join(s.cfg.WatchDir, "done")
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(doneDir, filepath.Base(path)))
}

func reviewFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return fmt.Sprintf("%s_%d.xlsx", base, time.Now().Unix())
}
