// Package normalize converts raw order-state records into canonical snapshots.
//
// Raw records arrive in two shapes: plain JSON objects as written by the
// order-entry UI, and DynamoDB wire-tagged attribute-value maps as read back
// from the document store. Both are accepted transparently. Normalization is
// a pure function of the record and the year's master and never fails: a
// missing or mistyped field becomes an empty string, zero or empty list.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ordertrail/internal/ir"
	"github.com/roach88/ordertrail/internal/master"
	"github.com/roach88/ordertrail/internal/snapshot"
	"github.com/roach88/ordertrail/internal/topping"
)

// Decode parses a raw blob into a plain document.
//
// Absent, empty and JSON null blobs decode to nil without error. A blob that
// is itself a JSON string holding an object is decoded once more. Wire-tagged
// documents are unwrapped.
func Decode(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	v, err := decodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw snapshot: %w", err)
	}
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		if v, err = decodeJSON([]byte(s)); err != nil {
			return nil, fmt.Errorf("decode embedded snapshot: %w", err)
		}
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("raw snapshot is %T, want object", v)
	}
	if IsWireTagged(doc) {
		return Unwrap(doc)
	}
	return doc, nil
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Normalize converts a raw blob into a snapshot. A blob that cannot be
// decoded yields the empty snapshot together with the decode error, so the
// caller can log it and carry on.
func Normalize(raw json.RawMessage, m master.Master) (snapshot.Snapshot, error) {
	doc, err := Decode(raw)
	if err != nil {
		return snapshot.Empty(), err
	}
	return Document(doc, m), nil
}

// Document converts an already-decoded plain document into a snapshot.
// A nil document yields the empty snapshot.
func Document(doc map[string]any, m master.Master) snapshot.Snapshot {
	s := snapshot.Empty()
	if doc == nil {
		return s
	}

	s.Customer = customer(doc)
	s.ReceptionNumber = clean(first(doc, "receptionNumber"))
	s.AllocationNumber = clean(first(doc, "allocationNumber"))
	s.SelectedYear = Year(doc)

	add := func(pos int, raw map[string]any, fallbackID string) {
		o := order(raw, m)
		id := clean(first(raw, "internalId", "internalID"))
		if id == "" {
			id = fallbackID
		}
		if _, dup := s.Orders[id]; id == "" || dup {
			id = fmt.Sprintf("%s%d", snapshot.LegacyKeyPrefix, pos)
			// A real id may already look like a positional key.
			for n := 1; ; n++ {
				if _, taken := s.Orders[id]; !taken {
					break
				}
				id = fmt.Sprintf("%s%d-%d", snapshot.LegacyKeyPrefix, pos, n)
			}
			o.Legacy = true
		}
		o.InternalID = id
		s.Orders[id] = o
	}

	switch orders := first(doc, "orders").(type) {
	case []any:
		for i, o := range orders {
			add(i, object(o), "")
		}
	case map[string]any:
		keys := sortedKeys(orders)
		for i, k := range keys {
			add(i, object(orders[k]), k)
		}
	}
	return s
}

// Year returns the fiscal year a decoded document was entered under, or 0.
func Year(doc map[string]any) int {
	return int(integer(first(doc, "selectedYear", "year")))
}

func customer(doc map[string]any) snapshot.Customer {
	c := object(first(doc, "customer", "customerInfo"))
	if c == nil {
		c = doc
	}
	return snapshot.Customer{
		ContactName:   clean(first(c, "contactName", "name")),
		Tel:           clean(first(c, "tel", "phone")),
		CompanyName:   clean(first(c, "companyName")),
		Email:         clean(first(c, "email")),
		Address:       clean(first(c, "address")),
		Floor:         clean(first(c, "floor")),
		PaymentMethod: clean(first(c, "paymentMethod")),
	}
}

func order(raw map[string]any, m master.Master) snapshot.Order {
	o := snapshot.Order{
		OrderNumber:           clean(first(raw, "orderNumber")),
		DeliveryDateTime:      deliveryDateTime(raw),
		DeliveryAddress:       clean(first(raw, "deliveryAddress")),
		DeliveryMethod:        clean(first(raw, "deliveryMethod")),
		ToppingChangeFlag:     boolean(first(raw, "toppingChangeFlag", "hasToppingChange")),
		ToppingChangeFreeText: clean(first(raw, "toppingChangeText", "toppingChangeFreeText")),
	}

	for _, v := range list(first(raw, "orderItems", "mainItems")) {
		it := object(v)
		qty := integer(first(it, "quantity", "count"))
		if qty == 0 {
			continue
		}
		key := clean(first(it, "productKey", "key"))
		name, ok := m.ItemName(key)
		if !ok {
			name = clean(first(it, "name", "productName"))
		}
		if name == "" {
			name = key
		}
		o.MainItems = append(o.MainItems, snapshot.MainItem{
			Name:      name,
			Quantity:  qty,
			UnitPrice: integer(first(it, "unitPrice", "price")),
			Notes:     clean(first(it, "notes", "note")),
		})
		if ts := selectedToppings(it, key, m); len(ts) > 0 {
			o.ToppingChanges = topping.Merge(o.ToppingChanges, snapshot.ToppingFact{Product: name, Toppings: ts})
		}
	}

	o.SideItems = sideItems(first(raw, "sideOrders", "sideItems"), m)

	if len(o.ToppingChanges) > 0 {
		o.ToppingChangeSummary = topping.Render(o.ToppingChanges)
	} else {
		// Rows written before patterns were stored only keep the summary.
		o.ToppingChangeSummary = clean(first(raw, "toppingChangeSummary"))
	}
	return o
}

func deliveryDateTime(raw map[string]any) string {
	if v := clean(first(raw, "deliveryDateTime")); v != "" {
		return v
	}
	date := clean(first(raw, "deliveryDate"))
	tm := clean(first(raw, "deliveryTime"))
	return strings.TrimSpace(date + " " + tm)
}

// selectedToppings collects topping names across an item's change patterns,
// first-seen order, no duplicates. Ids resolve through the item's master
// topping list and otherwise are taken as names.
func selectedToppings(item map[string]any, itemKey string, m master.Master) []string {
	var out []string
	for _, p := range list(first(item, "toppingChangePatterns")) {
		for _, t := range texts(first(object(p), "selectedToppings", "toppings")) {
			name, ok := m.ToppingName(itemKey, t)
			if !ok {
				name = clean(t)
			}
			if name != "" && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// sideItems accepts either a key→quantity map (iterated in key order) or a
// list of {key|name, quantity} objects.
func sideItems(v any, m master.Master) []snapshot.SideItem {
	var out []snapshot.SideItem
	push := func(key, rawName string, qty int64) {
		if qty == 0 {
			return
		}
		name, ok := m.ItemName(key)
		if !ok {
			name = rawName
		}
		if name == "" {
			name = key
		}
		out = append(out, snapshot.SideItem{Name: name, Quantity: qty})
	}

	switch sides := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(sides) {
			qv := sides[k]
			if obj := object(qv); obj != nil {
				qv = first(obj, "quantity", "count")
			}
			push(clean(k), "", integer(qv))
		}
	case []any:
		for _, e := range sides {
			it := object(e)
			push(clean(first(it, "key", "productKey")), clean(first(it, "name")), integer(first(it, "quantity", "count")))
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.CompareKeys)
	return keys
}
