package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"orderdesk/internal/backend"
	"orderdesk/internal/config"
	"orderdesk/internal/intake"
)

type fakeBackend struct {
	extractBody  string
	matchBody    string
	extractFail  bool
	finalizeFail bool

	extractCalls  atomic.Int64
	matchCalls    atomic.Int64
	finalizeCalls atomic.Int64

	onExtract func()
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/extract":
		f.extractCalls.Add(1)
		if f.onExtract != nil {
			f.onExtract()
		}
		if f.extractFail {
			http.Error(w, "extractor down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(f.extractBody))
	case "/match":
		f.matchCalls.Add(1)
		_, _ = w.Write([]byte(f.matchBody))
	case "/finalize":
		f.finalizeCalls.Add(1)
		if f.finalizeFail {
			http.Error(w, "persistence down", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "orderId": 1})
	default:
		http.NotFound(w, r)
	}
}

func newTestWorkflow(t *testing.T, fake *fakeBackend) (*Workflow, string) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	tmp := t.TempDir()
	cfg, _ := config.Load()
	cfg.BackendBaseURL = server.URL
	cfg.SpoolDir = filepath.Join(tmp, "spool")
	cfg.MaxUploadMB = 10

	pdfPath := filepath.Join(tmp, "po.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4\norder\n%%EOF"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(cfg, backend.NewClient(cfg), nil)
	t.Cleanup(w.Close)
	return w, pdfPath
}

func TestExtractReplacesItemsAndTriggersMatch(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{"Widget":[{"match":"Widget Pro","score":92}]}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.Extract(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Fatalf("extract without a file must fail, got %v", err)
	}
	if fake.extractCalls.Load() != 0 {
		t.Fatal("no request may be sent without a file")
	}

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	items := w.Items()
	if len(items) != 1 || items[0].Name != "Widget" || items[0].Quantity != 2 || items[0].Price != 5 || items[0].Total != 10 {
		t.Fatalf("items: %+v", items)
	}

	// Fresh names re-trigger matching and auto-select the top candidate.
	if fake.matchCalls.Load() != 1 {
		t.Fatalf("match calls: %d", fake.matchCalls.Load())
	}
	session := w.MatchSession()
	if session == nil || session.Selections["Widget"] != "Widget Pro" {
		t.Fatalf("session: %+v", session)
	}

	// Re-extract replaces wholesale, no accumulation.
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.Items()) != 1 {
		t.Fatalf("items after re-extract: %+v", w.Items())
	}
}

func TestMatchWithoutItemsIsANoOp(t *testing.T) {
	fake := &fakeBackend{}
	w, _ := newTestWorkflow(t, fake)

	if err := w.Match(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.matchCalls.Load() != 0 {
		t.Fatal("match with no items must not call the network")
	}
}

func TestApplySelectionsRewritesSharedOrder(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"1","Unit_Price":"2","Total":"2"},{"Request_Item":"Bolt","Amount":"4","Unit_Price":"1","Total":"4"}]`,
		matchBody:   `{"results":{"Widget":[{"match":"Widget Pro","score":92},{"match":"Widget Mini","score":60}],"Bolt":[]}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	w.ConfirmSelection("Widget", "Widget Mini")
	if err := w.ApplySelections(context.Background()); err != nil {
		t.Fatal(err)
	}

	items := w.Items()
	if items[0].Name != "Widget Mini" {
		t.Fatalf("confirmed selection not applied: %+v", items[0])
	}
	if items[1].Name != "Bolt" {
		t.Fatal("name without a selection entry must stay unchanged")
	}
	if &w.Order().Items[0] != &items[0] {
		t.Fatal("all accessors must expose the same order instance")
	}
}

func TestViewSwitchingKeepsState(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"1","Unit_Price":"2","Total":"2"}]`,
		matchBody:   `{"results":{"Widget":[{"match":"Widget Pro","score":92}]}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if w.View() != ViewExtract {
		t.Fatalf("initial view: %s", w.View())
	}

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	w.SetView(ViewMatch)
	w.SetView(ViewExtract)
	w.SetView(ViewMatch)

	if len(w.Items()) != 1 || w.MatchSession() == nil {
		t.Fatal("switching views must not discard state")
	}
}

func TestSubmitIsTerminalOnSuccess(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	draft := w.EnterFinalize()
	draft.SetCustomer("ACME", "C-7")

	if err := w.SubmitDraft(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !draft.Submitted() {
		t.Fatal("draft must be terminal after success")
	}

	if err := w.SubmitDraft(context.Background()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second submit must be rejected, got %v", err)
	}
	if fake.finalizeCalls.Load() != 1 {
		t.Fatalf("second request must not be sent, calls=%d", fake.finalizeCalls.Load())
	}
}

func TestSubmitFailureKeepsDraftEditable(t *testing.T) {
	fake := &fakeBackend{
		extractBody:  `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:    `{"results":{}}`,
		finalizeFail: true,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	draft := w.EnterFinalize()
	draft.SetCustomer("ACME", "C-7")

	err := w.SubmitDraft(context.Background())
	var reqErr *backend.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != http.StatusInternalServerError {
		t.Fatalf("want RequestError 500, got %v", err)
	}
	if draft.Submitted() {
		t.Fatal("failed submit must stay editable")
	}

	// Retry is simply re-invoking.
	fake.finalizeFail = false
	if err := w.SubmitDraft(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !draft.Submitted() {
		t.Fatal("retry after failure must succeed")
	}
}

func TestSelectingNewFileDiscardsDerivedState(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{"Widget":[{"match":"Widget Pro","score":92}]}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.EnterFinalize()

	other := filepath.Join(filepath.Dir(pdfPath), "other.pdf")
	if err := os.WriteFile(other, []byte("%PDF-1.4\nother\n%%EOF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.SelectFile(other); err != nil {
		t.Fatal(err)
	}

	if len(w.Items()) != 0 || w.MatchSession() != nil || w.Draft() != nil {
		t.Fatal("new selection must invalidate all downstream state")
	}
}

func TestRejectedSelectionDiscardsDerivedState(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{"Widget":[{"match":"Widget Pro","score":92}]}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.EnterFinalize()
	preview := w.Preview()

	// A rejected candidate clears everything the previous file produced; it
	// must not leave the old selection and its results behind the error.
	bad := filepath.Join(filepath.Dir(pdfPath), "notes.txt")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	var verr *intake.ValidationError
	if err := w.SelectFile(bad); !errors.As(err, &verr) || verr.Code != intake.NotAPdf {
		t.Fatalf("want NotAPdf, got %v", err)
	}

	if w.Preview() != nil || preview.Live() {
		t.Fatal("rejected selection must release the previous handle")
	}
	if len(w.Items()) != 0 || w.MatchSession() != nil || w.Draft() != nil {
		t.Fatal("rejected selection must discard derived state")
	}

	if err := w.Extract(context.Background()); !errors.Is(err, ErrNoFile) {
		t.Fatalf("extract after rejection must report no file, got %v", err)
	}
}

func TestStaleExtractFailureIsDropped(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	other := filepath.Join(filepath.Dir(pdfPath), "other.pdf")
	if err := os.WriteFile(other, []byte("%PDF-1.4\nother\n%%EOF"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The file switch happens mid-flight and the old call then fails. The
	// error belongs to the superseded call and must not surface against the
	// new selection.
	fake.onExtract = func() {
		fake.onExtract = nil
		fake.extractFail = true
		if err := w.SelectFile(other); err != nil {
			t.Error(err)
		}
	}

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatalf("stale failure surfaced: %v", err)
	}

	fake.extractFail = false
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.Items()) != 1 {
		t.Fatalf("items after fresh extract: %+v", w.Items())
	}
}

func TestStaleExtractResponseIsDiscarded(t *testing.T) {
	fake := &fakeBackend{
		extractBody: `[{"Request_Item":"Widget","Amount":"2","Unit_Price":"5","Total":"10"}]`,
		matchBody:   `{"results":{}}`,
	}
	w, pdfPath := newTestWorkflow(t, fake)

	other := filepath.Join(filepath.Dir(pdfPath), "other.pdf")
	if err := os.WriteFile(other, []byte("%PDF-1.4\nother\n%%EOF"), 0o644); err != nil {
		t.Fatal(err)
	}

	// While the extract request is in flight, the user switches files. The
	// response that then arrives belongs to the old selection and must not
	// resurrect it.
	fake.onExtract = func() {
		fake.onExtract = nil
		if err := w.SelectFile(other); err != nil {
			t.Error(err)
		}
	}

	if err := w.SelectFile(pdfPath); err != nil {
		t.Fatal(err)
	}
	if err := w.Extract(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(w.Items()) != 0 {
		t.Fatalf("stale response applied: %+v", w.Items())
	}
}
