package format

import (
	"strings"

	"github.com/roach88/ordertrail/internal/snapshot"
)

// CanceledItem is one line of a cancellation payload.
type CanceledItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// CanceledOrder is the payload a cancellation row carries in place of a
// before/after pair. Content holds pre-formatted lines written by the
// canceling client and is rendered verbatim after the items.
type CanceledOrder struct {
	OrderNumber      string         `json:"orderNumber"`
	DeliveryDateTime string         `json:"deliveryDateTime,omitempty"`
	DeliveryDate     string         `json:"deliveryDate,omitempty"`
	DeliveryTime     string         `json:"deliveryTime,omitempty"`
	Items            []CanceledItem `json:"items,omitempty"`
	Content          []string       `json:"content,omitempty"`
}

func (c CanceledOrder) number() string {
	if n := strings.TrimSpace(c.OrderNumber); n != "" {
		return n
	}
	return snapshot.NoOrderNumber
}

func (c CanceledOrder) deliveredAt() string {
	if c.DeliveryDateTime != "" {
		return strings.TrimSpace(c.DeliveryDateTime)
	}
	return strings.TrimSpace(c.DeliveryDate + " " + c.DeliveryTime)
}

// Canceled renders one canceled order as a multi-line statement that
// starts with the order number.
func Canceled(c CanceledOrder) string {
	items := make([]line, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, line{strings.TrimSpace(it.Name), it.Quantity})
	}
	return canceledBlock(c.number(), c.deliveredAt(), items, c.Content)
}

// CanceledSingle renders a single-order cancellation. A row with no
// payload still yields a statement.
func CanceledSingle(c *CanceledOrder) []string {
	if c == nil {
		return []string{"注文がキャンセルされました（詳細なし）。"}
	}
	return []string{Canceled(*c)}
}

// CanceledAll renders a whole-reception cancellation: a header naming the
// reception, then one statement per canceled order.
func CanceledAll(receptionNumber string, orders []CanceledOrder) []string {
	header := "全注文がキャンセルされました。"
	if receptionNumber != "" {
		header = "受付番号 " + receptionNumber + " の" + header
	}
	out := make([]string, 0, len(orders)+1)
	out = append(out, header)
	for _, c := range orders {
		out = append(out, Canceled(c))
	}
	return out
}
