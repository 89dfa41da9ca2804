package notify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/models"
)

// FormatReceipt renders the subject and plain-text body for a purchase
// event. The body lists every payload field as "key: value", keys sorted.
func FormatReceipt(ev *events.PurchaseEvent) (subject, body string, err error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", "", fmt.Errorf("marshal receipt: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", "", fmt.Errorf("unmarshal receipt: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	title := "Boleta"
	if ev.DocumentType == models.DocumentTypeFactura {
		title = "Factura"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Detalle de la %s:\n\n", strings.ToLower(title))
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fieldValue(fields[k]))
	}

	return fmt.Sprintf("%s %d", title, ev.OrderID), b.String(), nil
}

func fieldValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
