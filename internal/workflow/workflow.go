package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"orderdesk/internal"
	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/intake"
	"orderdesk/internal/storage"
)

type View string

const (
	ViewExtract  View = "extract"
	ViewMatch    View = "match"
	ViewFinalize View = "finalize"
)

var (
	ErrNoFile     = errors.New("no file selected")
	ErrExtracting = errors.New("extraction already in flight")
	ErrMatching   = errors.New("matching already in flight")
	ErrSubmitting = errors.New("submission already in flight")
)

// Workflow carries one order from file selection through extraction,
// matching and finalization. It owns the single shared ExtractedOrder that
// all three views operate on; switching views never discards state.
//
// All transitions run to completion between network calls. While a call is
// outstanding its in-flight flag rejects re-entrant triggers, and a
// monotonically increasing token per adapter discards responses that arrive
// after the file or the call they belong to has been superseded.
type Workflow struct {
	cfg    config.Config
	client *backend.Client
	db     *storage.DB

	mu     sync.Mutex
	view   View
	intake *intake.Intake
	order  *internal.ExtractedOrder
	match  *MatchSession
	draft  *Draft

	isExtracting bool
	isMatching   bool
	isSubmitting bool
	extractToken uint64
	matchToken   uint64
}

// New builds a workflow. db may be nil; then successful submissions are not
// journaled locally.
func New(cfg config.Config, client *backend.Client, db *storage.DB) *Workflow {
	return &Workflow{
		cfg:    cfg,
		client: client,
		db:     db,
		view:   ViewExtract,
		intake: intake.New(cfg.SpoolDir, cfg.MaxUploadBytes()),
		order:  &internal.ExtractedOrder{},
	}
}

func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.view
}

// SetView is purely display routing; no state in the other views is touched.
func (w *Workflow) SetView(v View) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = v
}

// SelectFile validates and adopts the file at path as the active selection.
// An empty path is an explicit removal. Every attempt, accepted or rejected,
// discards all downstream derived state (items, match results, draft) and
// invalidates in-flight responses; a rejected file must not leave the
// previous selection's results on screen.
func (w *Workflow) SelectFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetDerivedLocked()
	_, err := w.intake.Select(path)
	return err
}

// SelectEmailFile adopts the first PDF attachment of a saved .eml file.
// Rejection clears derived state the same way SelectFile does.
func (w *Workflow) SelectEmailFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.resetDerivedLocked()
	_, err := w.intake.SelectEmail(path)
	return err
}

func (w *Workflow) resetDerivedLocked() {
	w.order.Items = nil
	w.match = nil
	w.draft = nil
	w.extractToken++
	w.matchToken++
}

func (w *Workflow) Preview() *intake.Preview {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.intake.Active()
}

// Order returns the shared mutable order. Every view operates on the same
// instance.
func (w *Workflow) Order() *internal.ExtractedOrder {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order
}

func (w *Workflow) Items() []internal.LineItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Items
}

// Extract sends the selected file to the extraction service and replaces the
// item list wholesale with the mapped response. Re-invoking with the same
// file replaces prior results; nothing accumulates. A fresh item name set
// re-triggers matching.
func (w *Workflow) Extract(ctx context.Context) error {
	w.mu.Lock()
	preview := w.intake.Active()
	if preview == nil {
		w.mu.Unlock()
		return ErrNoFile
	}
	if w.isExtracting {
		w.mu.Unlock()
		return ErrExtracting
	}
	w.isExtracting = true
	w.extractToken++
	token := w.extractToken
	name, path := preview.Name, preview.Path
	w.mu.Unlock()

	items, err := w.extractFile(ctx, name, path)

	w.mu.Lock()
	w.isExtracting = false
	if token != w.extractToken {
		// Selection changed while the call was outstanding. Success or
		// failure, the outcome belongs to a superseded call and is dropped;
		// surfacing it would attach old state to the new selection.
		w.mu.Unlock()
		return nil
	}
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.order.Items = items
	w.mu.Unlock()

	w.refreshAfterItemsChanged(ctx)
	return nil
}

func (w *Workflow) extractFile(ctx context.Context, name, path string) ([]internal.LineItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return w.client.Extract(ctx, name, f)
}

// refreshAfterItemsChanged keeps match results fresh relative to the current
// names. It fires on every item change whether or not names actually
// differ; failures leave the previous session untouched.
func (w *Workflow) refreshAfterItemsChanged(ctx context.Context) {
	if err := w.Match(ctx); err != nil && !errors.Is(err, ErrMatching) {
		fmt.Printf("match refresh failed: %v\n", err)
	}
}

// Match asks the matching service for candidates for every current item
// name. With no items it is a no-op that neither calls the network nor
// clears previous results. On success the first candidate per query becomes
// the default selection.
func (w *Workflow) Match(ctx context.Context) error {
	w.mu.Lock()
	if len(w.order.Items) == 0 {
		w.mu.Unlock()
		return nil
	}
	if w.isMatching {
		w.mu.Unlock()
		return ErrMatching
	}
	w.isMatching = true
	w.matchToken++
	token := w.matchToken
	queries := make([]string, 0, len(w.order.Items))
	for _, item := range w.order.Items {
		queries = append(queries, item.Name)
	}
	w.mu.Unlock()

	results, err := w.client.Match(ctx, queries)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.isMatching = false
	if token != w.matchToken {
		return nil
	}
	if err != nil {
		// Previous results stay; the caller retries by re-invoking.
		return err
	}
	w.match = NewMatchSession(results)
	return nil
}

func (w *Workflow) MatchSession() *MatchSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.match
}

// ConfirmSelection overwrites the chosen candidate for query. No validation
// against the returned candidates; the caller constructs the input.
func (w *Workflow) ConfirmSelection(query, chosen string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.match != nil {
		w.match.Confirm(query, chosen)
	}
}

// ApplySelections rewrites the shared items with the confirmed names and
// re-triggers matching on the new name set.
func (w *Workflow) ApplySelections(ctx context.Context) error {
	w.mu.Lock()
	if w.match == nil {
		w.mu.Unlock()
		return errors.New("no match results to apply")
	}
	w.order.Items = ApplySelections(w.order.Items, w.match.Selections)
	w.mu.Unlock()

	return w.Match(ctx)
}

// EnterFinalize seeds the order draft from the current items, once. Later
// calls return the existing draft; edits there never flow back into the
// shared order.
func (w *Workflow) EnterFinalize() *Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ViewFinalize
	if w.draft == nil {
		w.draft = SeedDraft(w.order.Items)
	}
	return w.draft
}

func (w *Workflow) Draft() *Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// SubmitDraft sends the whole draft to the persistence service. Success is
// terminal: the draft refuses further submission and the confirmation is
// journaled when a database is attached. Failure keeps the draft editable
// for retry.
func (w *Workflow) SubmitDraft(ctx context.Context) error {
	w.mu.Lock()
	if w.draft == nil {
		w.mu.Unlock()
		return errors.New("no draft to submit")
	}
	if w.draft.Submitted() {
		w.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if w.isSubmitting {
		w.mu.Unlock()
		return ErrSubmitting
	}
	w.isSubmitting = true
	current := w.draft
	draft := current.Snapshot()
	w.mu.Unlock()

	confirmation, err := w.client.Finalize(ctx, draft)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.isSubmitting = false
	if err != nil {
		return err
	}
	// The draft that went over the wire is the one that becomes terminal,
	// even if the selection changed while the call was outstanding.
	current.markSubmitted()

	if w.db != nil {
		if err := w.db.InsertSubmission(uuid.NewString(), draft, string(confirmation)); err != nil {
			fmt.Printf("submission journal write failed: %v\n", err)
		}
	}
	return nil
}

// Close releases the preview handle. Safe to call on every teardown path.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.intake.Release()
}
