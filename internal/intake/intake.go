package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

type ValidationCode string

const (
	NotAPdf  ValidationCode = "NOT_A_PDF"
	TooLarge ValidationCode = "TOO_LARGE"
)

// ValidationError rejects a candidate file before anything downstream sees
// it. Fully recoverable: the caller just selects another file.
type ValidationError struct {
	Code   ValidationCode
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Preview is the one manually managed resource of the workflow: a spool copy
// of the selected file that stands in for the browser object URL of the
// original flow. Exactly one live Preview exists per selection; Release
// removes the copy and is idempotent.
type Preview struct {
	Name  string
	Path  string
	Size  int64
	Pages int

	released bool
}

func (p *Preview) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	_ = os.Remove(p.Path)
}

func (p *Preview) Live() bool {
	return p != nil && !p.released
}

// Intake validates candidate files and owns the active Preview. All
// acquisition and release goes through Select/SelectBytes/Release so a
// replaced handle is never leaked.
type Intake struct {
	spoolDir string
	maxBytes int64
	active   *Preview
}

func New(spoolDir string, maxBytes int64) *Intake {
	return &Intake{spoolDir: spoolDir, maxBytes: maxBytes}
}

// Select validates the candidate at path and makes it the active Preview.
// Every selection attempt, accepted or rejected, drops the current handle
// first: a rejected candidate must not leave the previous file active. An
// empty path is an explicit removal and no error.
func (i *Intake) Select(path string) (*Preview, error) {
	i.Release()

	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	if !declaredPDF(path) {
		return nil, &ValidationError{Code: NotAPdf, Detail: fmt.Sprintf("declared media type of %s is not application/pdf", filepath.Base(path))}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > i.maxBytes {
		return nil, &ValidationError{Code: TooLarge, Detail: fmt.Sprintf("%d bytes exceeds cap of %d", info.Size(), i.maxBytes)}
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return i.adopt(filepath.Base(path), blob)
}

// SelectBytes selects an in-memory candidate, e.g. a PDF pulled out of an
// email attachment. The declared media type is taken from contentType with
// the filename extension as fallback.
func (i *Intake) SelectBytes(name, contentType string, blob []byte) (*Preview, error) {
	i.Release()

	declared := strings.ToLower(strings.TrimSpace(contentType))
	if !strings.Contains(declared, "pdf") && !declaredPDF(name) {
		return nil, &ValidationError{Code: NotAPdf, Detail: fmt.Sprintf("declared media type %q of %s is not application/pdf", contentType, name)}
	}
	if int64(len(blob)) > i.maxBytes {
		return nil, &ValidationError{Code: TooLarge, Detail: fmt.Sprintf("%d bytes exceeds cap of %d", len(blob), i.maxBytes)}
	}
	return i.adopt(name, blob)
}

func (i *Intake) adopt(name string, blob []byte) (*Preview, error) {
	if err := os.MkdirAll(i.spoolDir, 0o755); err != nil {
		return nil, err
	}

	hash := sha256.Sum256(blob)
	spoolPath := filepath.Join(i.spoolDir, hex.EncodeToString(hash[:])+".pdf")
	if err := os.WriteFile(spoolPath, blob, 0o644); err != nil {
		return nil, err
	}

	i.active = &Preview{
		Name:  name,
		Path:  spoolPath,
		Size:  int64(len(blob)),
		Pages: pageCount(spoolPath),
	}
	return i.active, nil
}

func (i *Intake) Active() *Preview {
	if i.active != nil && !i.active.released {
		return i.active
	}
	return nil
}

func (i *Intake) Release() {
	i.active.Release()
	i.active = nil
}

func declaredPDF(path string) bool {
	declared := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return strings.Contains(declared, "pdf")
}

// pageCount is best effort; a file that declares PDF but does not parse still
// gets a handle, the backend decides what it can extract from it. The parser
// panics on some malformed inputs, hence the recover.
func pageCount(path string) (n int) {
	defer func() {
		if r := recover(); r != nil {
			n = 0
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return reader.NumPage()
}
