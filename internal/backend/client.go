package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"orderdesk/internal"
	"orderdesk/internal/config"
	"orderdesk/internal/util"
)

// RequestError is any non-2xx answer or transport-level failure from the
// backend. Uniform across all four endpoints; retry is re-invoking the call.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("backend request failed: status=%d body=%s", e.Status, e.Body)
}

// Client talks to the external extraction/matching/persistence service. It
// holds no workflow state; adapters above decide what to do with responses.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

// extractRecord is the backend's wire shape for one extracted line. All
// fields arrive as strings and any of them may be absent.
type extractRecord struct {
	RequestItem string `json:"Request_Item"`
	Amount      string `json:"Amount"`
	UnitPrice   string `json:"Unit_Price"`
	Total       string `json:"Total"`
}

type matchResponse struct {
	Results map[string][]internal.MatchCandidate `json:"results"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.BackendTimeoutMs) * time.Millisecond},
	}
}

// Extract uploads the file as the multipart "file" field and maps the
// response records to line items. Field-level parse failures default to zero
// or empty; a bad field never fails the call.
func (c *Client) Extract(ctx context.Context, filename string, content io.Reader) ([]internal.LineItem, error) {
	var payload bytes.Buffer
	writer := multipart.NewWriter(&payload)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "extract", writer.FormDataContentType(), &payload)
	if err != nil {
		return nil, err
	}

	var records []extractRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}

	items := make([]internal.LineItem, 0, len(records))
	for _, rec := range records {
		items = append(items, internal.LineItem{
			Name:     rec.RequestItem,
			Quantity: util.LenientFloat(rec.Amount),
			Price:    util.LenientFloat(rec.UnitPrice),
			Total:    util.LenientFloat(rec.Total),
		})
	}
	return items, nil
}

// Match sends the query names and returns ranked candidates per query. The
// backend pre-sorts candidates by descending score; they are not re-sorted
// here.
func (c *Client) Match(ctx context.Context, queries []string) (map[string][]internal.MatchCandidate, error) {
	payload, err := json.Marshal(queries)
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "match", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var decoded matchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode match response: %w", err)
	}
	if decoded.Results == nil {
		decoded.Results = map[string][]internal.MatchCandidate{}
	}
	return decoded.Results, nil
}

// Finalize submits the whole draft in one request. The confirmation body is
// returned raw; nothing in it is consumed beyond journaling.
func (c *Client) Finalize(ctx context.Context, draft internal.OrderDraft) (json.RawMessage, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, "finalize", "application/json", bytes.NewReader(payload))
}

func (c *Client) ListOrders(ctx context.Context) ([]internal.OrderRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("orders"), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var rows []internal.OrderRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode orders response: %w", err)
	}
	return rows, nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(endpoint), payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Status: 0, Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BackendBaseURL, "/") + "/" + path
}
