// Package format turns structural deltas into human-readable change
// statements.
//
// Formatting is an ordered rule table: the first rule whose predicate
// matches a delta renders it. Every delta either renders, is suppressed by
// an explicit rule (topping fields, reported by the topping package), or
// falls through to a diagnostic statement. Nothing is dropped silently.
package format

import (
	"github.com/roach88/ordertrail/internal/diff"
	"github.com/roach88/ordertrail/internal/ir"
	"github.com/roach88/ordertrail/internal/snapshot"
)

// Rule is one entry of the formatting table.
type Rule struct {
	Name string
	// Match reports whether the rule handles d.
	Match func(d diff.Delta) bool
	// Render produces the statement. ok=false suppresses the delta.
	Render func(d diff.Delta, before, after snapshot.Snapshot) (text string, ok bool)
}

// Rules is evaluated top to bottom. The last rule matches everything.
var Rules = []Rule{
	{Name: "order-added", Match: isWholeOrder(diff.KindNew), Render: renderOrderAdded},
	{Name: "order-removed", Match: isWholeOrder(diff.KindDeleted), Render: renderOrderRemoved},
	{Name: "topping-field", Match: isToppingField, Render: suppress},
	{Name: "order-field", Match: isOrderField, Render: renderOrderField},
	{Name: "item-added-removed", Match: isItemAddRemove, Render: renderItemAddRemove},
	{Name: "item-field", Match: isItemField, Render: renderItemField},
	{Name: "customer-field", Match: isCustomerField, Render: renderCustomerField},
	{Name: "reception-field", Match: isTopLevelField, Render: renderTopLevelField},
	{Name: "unhandled", Match: func(diff.Delta) bool { return true }, Render: renderUnhandled},
}

// Format renders one delta. ok=false means the delta is intentionally suppressed.
func Format(d diff.Delta, before, after snapshot.Snapshot) (string, bool) {
	for _, r := range Rules {
		if r.Match(d) {
			return r.Render(d, before, after)
		}
	}
	return renderUnhandled(d, before, after)
}

// FormatAll renders deltas in order. It returns the statements and the
// number of suppressed deltas.
func FormatAll(deltas []diff.Delta, before, after snapshot.Snapshot) ([]string, int) {
	out := make([]string, 0, len(deltas))
	suppressed := 0
	for _, d := range deltas {
		s, ok := Format(d, before, after)
		if !ok {
			suppressed++
			continue
		}
		out = append(out, s)
	}
	return out, suppressed
}

var toppingFields = map[string]bool{
	snapshot.KeyToppingChangeSummary:  true,
	snapshot.KeyToppingChangeFlag:     true,
	snapshot.KeyToppingChangeFreeText: true,
	snapshot.KeyToppingChanges:        true,
}

func underOrders(p diff.Path) bool {
	return len(p) >= 2 && p.Key(0) == snapshot.KeyOrders && p.Key(1) != ""
}

func isWholeOrder(kind diff.Kind) func(diff.Delta) bool {
	return func(d diff.Delta) bool {
		return d.Kind == kind && len(d.Path) == 2 && underOrders(d.Path)
	}
}

func isToppingField(d diff.Delta) bool {
	return len(d.Path) >= 3 && underOrders(d.Path) && toppingFields[d.Path.Key(2)]
}

func isOrderField(d diff.Delta) bool {
	if len(d.Path) != 3 || !underOrders(d.Path) || d.Kind == diff.KindArrayAdd || d.Kind == diff.KindArrayDelete {
		return false
	}
	_, ok := orderLabels[d.Path.Key(2)]
	return ok
}

func isItemList(key string) bool {
	return key == snapshot.KeyMainItems || key == snapshot.KeySideItems
}

func isItemAddRemove(d diff.Delta) bool {
	if d.Kind != diff.KindArrayAdd && d.Kind != diff.KindArrayDelete {
		return false
	}
	_, isIdx := d.Path.Index(3)
	return len(d.Path) == 4 && underOrders(d.Path) && isItemList(d.Path.Key(2)) && isIdx
}

func isItemField(d diff.Delta) bool {
	if len(d.Path) != 5 || !underOrders(d.Path) || !isItemList(d.Path.Key(2)) {
		return false
	}
	if _, isIdx := d.Path.Index(3); !isIdx {
		return false
	}
	field := d.Path.Key(4)
	_, labeled := itemLabels[field]
	return labeled || field == snapshot.KeyName
}

func isCustomerField(d diff.Delta) bool {
	if len(d.Path) != 2 || d.Path.Key(0) != snapshot.KeyCustomer {
		return false
	}
	_, ok := customerLabels[d.Path.Key(1)]
	return ok
}

func isTopLevelField(d diff.Delta) bool {
	if len(d.Path) != 1 {
		return false
	}
	_, ok := topLevelLabels[d.Path.Key(0)]
	return ok
}

// subjectOrder returns the order line a delta is about, preferring after.
func subjectOrder(id string, before, after snapshot.Snapshot) snapshot.Order {
	if o, ok := after.Order(id); ok {
		return o
	}
	o, _ := before.Order(id)
	return o
}

func renderOrderAdded(d diff.Delta, _, after snapshot.Snapshot) (string, bool) {
	o, _ := after.Order(d.Path.Key(1))
	return orderAdded(o.DisplayNumber()), true
}

func renderOrderRemoved(d diff.Delta, before, _ snapshot.Snapshot) (string, bool) {
	o, _ := before.Order(d.Path.Key(1))
	return canceledBlock(o.DisplayNumber(), o.DeliveryDateTime, orderLines(o), nil), true
}

func suppress(diff.Delta, snapshot.Snapshot, snapshot.Snapshot) (string, bool) {
	return "", false
}

func renderOrderField(d diff.Delta, before, after snapshot.Snapshot) (string, bool) {
	id, field := d.Path.Key(1), d.Path.Key(2)
	o := subjectOrder(id, before, after)
	if field == snapshot.KeyOrderNumber {
		// Name the line by the number it had before the edit.
		if prev, ok := before.Order(id); ok {
			o = prev
		}
	}
	return changed(orderSubject(o.DisplayNumber()), orderLabels[field], d.Lhs, d.Rhs), true
}

func renderItemAddRemove(d diff.Delta, before, after snapshot.Snapshot) (string, bool) {
	o := subjectOrder(d.Path.Key(1), before, after)
	if d.Kind == diff.KindArrayAdd {
		name, qty := itemOf(d.Rhs)
		return itemAdded(o.DisplayNumber(), name, qty), true
	}
	name, _ := itemOf(d.Lhs)
	return itemRemoved(o.DisplayNumber(), name), true
}

func itemOf(v ir.Value) (string, int64) {
	rec, _ := v.(ir.Record)
	name, _ := rec.Get(snapshot.KeyName)
	qty, _ := rec.Get(snapshot.KeyQuantity)
	n, _ := qty.(ir.Int)
	return ir.Text(name), int64(n)
}

func renderItemField(d diff.Delta, before, after snapshot.Snapshot) (string, bool) {
	id, list, field := d.Path.Key(1), d.Path.Key(2), d.Path.Key(4)
	idx, _ := d.Path.Index(3)
	o := subjectOrder(id, before, after)
	if field == snapshot.KeyName {
		return itemReplaced(o.DisplayNumber(), idx+1, d.Lhs, d.Rhs), true
	}
	name, ok := itemName(after, id, list, idx)
	if !ok {
		name, _ = itemName(before, id, list, idx)
	}
	return changed(itemSubject(o.DisplayNumber(), name), itemLabels[field], d.Lhs, d.Rhs), true
}

// itemName looks up the display name at idx of an order's item list.
func itemName(s snapshot.Snapshot, id, list string, idx int) (string, bool) {
	o, ok := s.Order(id)
	if !ok || idx < 0 {
		return "", false
	}
	switch list {
	case snapshot.KeyMainItems:
		if idx < len(o.MainItems) {
			return o.MainItems[idx].Name, true
		}
	case snapshot.KeySideItems:
		if idx < len(o.SideItems) {
			return o.SideItems[idx].Name, true
		}
	}
	return "", false
}

func renderCustomerField(d diff.Delta, _, _ snapshot.Snapshot) (string, bool) {
	return changed("", customerLabels[d.Path.Key(1)], d.Lhs, d.Rhs), true
}

func renderTopLevelField(d diff.Delta, _, _ snapshot.Snapshot) (string, bool) {
	return changed("", topLevelLabels[d.Path.Key(0)], d.Lhs, d.Rhs), true
}

func renderUnhandled(d diff.Delta, _, _ snapshot.Snapshot) (string, bool) {
	return Unhandled(string(d.Kind), d.Path.String(), d.Lhs, d.Rhs), true
}
