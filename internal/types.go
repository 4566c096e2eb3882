package internal

// LineItem is one product row of an order. Total is recomputed from
// quantity*price only when quantity or price is edited; extraction results
// and direct total edits carry their own total unreconciled.
type LineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// ExtractedOrder is the single shared item collection the workflow stages
// operate on. The workflow owns the instance and hands it down by reference;
// stages mutate it in place.
type ExtractedOrder struct {
	Items []LineItem `json:"items"`
}

// MatchCandidate is one catalog name proposed for an extracted name. The
// backend returns candidates pre-sorted by descending score (0-100).
type MatchCandidate struct {
	Name  string  `json:"match"`
	Score float64 `json:"score"`
}

// OrderDraft is the editable, not-yet-submitted order. Seeded once from the
// extracted items at finalize entry; independent thereafter.
type OrderDraft struct {
	CustomerName string     `json:"customerName"`
	CustomerID   string     `json:"customerId"`
	Items        []LineItem `json:"items"`
}

// OrderRow is one row of the backend's submitted-orders listing.
type OrderRow struct {
	ID           int     `json:"id"`
	CustomerName string  `json:"customer_name"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price"`
	Total        float64 `json:"total"`
}

// SubmissionRow is one entry of the local submissions journal.
type SubmissionRow struct {
	ID           int
	TraceID      string
	CustomerName string
	CustomerID   string
	ItemsJSON    string
	Confirmation string
	CreatedAt    string
}

// RunRow is one entry of the local run audit log.
type RunRow struct {
	ID         int
	TraceID    string
	Source     string
	FileName   string
	CountsJSON string
	TimingsMs  float64
	CreatedAt  string
}
