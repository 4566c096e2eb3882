package workflow

import (
	"errors"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

type Field string

const (
	FieldName     Field = "name"
	FieldQuantity Field = "quantity"
	FieldPrice    Field = "price"
	FieldTotal    Field = "total"
)

var ErrAlreadySubmitted = errors.New("draft already submitted")

// Draft is the editable order of the finalize stage. Seeded once from the
// extracted items; edits here do not flow back into the shared order.
// Submitted is terminal: a new workflow is needed to submit again.
type Draft struct {
	CustomerName string
	CustomerID   string
	Items        []internal.LineItem

	submitted bool
}

func SeedDraft(items []internal.LineItem) *Draft {
	seeded := make([]internal.LineItem, len(items))
	copy(seeded, items)
	return &Draft{Items: seeded}
}

func (d *Draft) SetCustomer(name, id string) {
	d.CustomerName = name
	d.CustomerID = id
}

// EditField applies one raw edit to the row at index. Quantity and price
// parse leniently (0 on failure) and recompute the row total. A direct total
// edit stores the parsed value without touching quantity or price — the
// derived-field invariant is knowingly bypassed there, matching the form
// this replaces. An out-of-range index is a programming error and panics.
func (d *Draft) EditField(index int, field Field, raw string) {
	item := &d.Items[index]
	switch field {
	case FieldName:
		item.Name = raw
	case FieldQuantity:
		item.Quantity = util.LenientFloat(raw)
		item.Total = item.Quantity * item.Price
	case FieldPrice:
		item.Price = util.LenientFloat(raw)
		item.Total = item.Quantity * item.Price
	case FieldTotal:
		item.Total = util.LenientFloat(raw)
	}
}

func (d *Draft) Submitted() bool {
	return d.submitted
}

func (d *Draft) markSubmitted() {
	d.submitted = true
}

// Snapshot is the wire form sent to the persistence service.
func (d *Draft) Snapshot() internal.OrderDraft {
	items := make([]internal.LineItem, len(d.Items))
	copy(items, d.Items)
	return internal.OrderDraft{
		CustomerName: d.CustomerName,
		CustomerID:   d.CustomerID,
		Items:        items,
	}
}
