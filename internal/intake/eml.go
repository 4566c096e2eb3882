package intake

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"
)

// SelectEmail reads a saved .eml file and selects the first PDF attachment
// found inside it. Purchase orders regularly arrive as mail attachments;
// accepting the raw message file keeps that path open without any mailbox
// credentials.
func (i *Intake) SelectEmail(path string) (*Preview, error) {
	i.Release()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse email: %w", err)
	}

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment.pdf"
		}
		if !strings.Contains(strings.ToLower(att.ContentType), "pdf") && !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		return i.SelectBytes(name, att.ContentType, att.Content)
	}

	return nil, &ValidationError{Code: NotAPdf, Detail: fmt.Sprintf("no PDF attachment in %s", path)}
}
