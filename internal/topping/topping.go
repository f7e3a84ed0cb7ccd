// Package topping reconciles topping substitutions between two snapshots.
//
// The generic differ only sees the topping-change summary as an opaque
// string, so a plain inequality delta on it is not readable. This package
// compares the structured facts carried on each order line instead and
// reports, per product, the toppings that were added.
//
// The summary grammar is:
//
//	summary  = item { "; " item }
//	item     = product ( ": " | "：" ) topping { "、" topping }
//
// Render and Parse are inverse for any facts whose names contain none of the
// separator characters.
package topping

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ordertrail/internal/ir"
	"github.com/roach88/ordertrail/internal/snapshot"
)

// Separators of the summary grammar.
const (
	ItemSeparator    = "; "
	ProductSeparator = ": "
	ToppingSeparator = "、"
)

// Render builds the display summary for a list of facts.
// Facts with no toppings are omitted.
func Render(facts []snapshot.ToppingFact) string {
	parts := make([]string, 0, len(facts))
	for _, f := range facts {
		if len(f.Toppings) == 0 {
			continue
		}
		parts = append(parts, f.Product+ProductSeparator+strings.Join(f.Toppings, ToppingSeparator))
	}
	return strings.Join(parts, ItemSeparator)
}

// Parse re-parses a display summary into facts. It never fails: a segment
// without a product separator is read as a product with no toppings, and
// repeated products are merged.
func Parse(summary string) []snapshot.ToppingFact {
	var facts []snapshot.ToppingFact
	for _, seg := range strings.Split(summary, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		product, rest := splitProduct(seg)
		if product == "" {
			continue
		}
		facts = Merge(facts, snapshot.ToppingFact{Product: product, Toppings: splitToppings(rest)})
	}
	return facts
}

// splitProduct splits at the first ASCII or full-width colon.
func splitProduct(seg string) (string, string) {
	i := strings.IndexAny(seg, ":：")
	if i < 0 {
		return seg, ""
	}
	sepLen := len(":")
	if strings.HasPrefix(seg[i:], "：") {
		sepLen = len("：")
	}
	return strings.TrimSpace(seg[:i]), seg[i+sepLen:]
}

func splitToppings(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '、' || r == ',' || r == '，'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// Merge adds f to facts, combining toppings when the product is already listed.
// Topping order is first-seen and duplicates are dropped.
func Merge(facts []snapshot.ToppingFact, f snapshot.ToppingFact) []snapshot.ToppingFact {
	for i := range facts {
		if facts[i].Product != f.Product {
			continue
		}
		merged := slices.Clone(facts[i].Toppings)
		for _, t := range f.Toppings {
			if !slices.Contains(merged, t) {
				merged = append(merged, t)
			}
		}
		facts[i].Toppings = merged
		return facts
	}
	return append(facts, snapshot.ToppingFact{Product: f.Product, Toppings: slices.Clone(f.Toppings)})
}

// Added returns, per product in after, the toppings absent from before's
// entry for that product. A product with no before entry contributes all of
// its toppings. Products with nothing added are omitted.
func Added(before, after []snapshot.ToppingFact) []snapshot.ToppingFact {
	var out []snapshot.ToppingFact
	for _, af := range after {
		var prior []string
		for _, bf := range before {
			if bf.Product == af.Product {
				prior = bf.Toppings
				break
			}
		}
		var added []string
		for _, t := range af.Toppings {
			if !slices.Contains(prior, t) {
				added = append(added, t)
			}
		}
		if len(added) > 0 {
			out = append(out, snapshot.ToppingFact{Product: af.Product, Toppings: added})
		}
	}
	return out
}

// FactsOf returns the structured facts of an order line. Lines written
// before facts were carried (summary only) are re-parsed from the summary.
func FactsOf(o snapshot.Order) []snapshot.ToppingFact {
	if len(o.ToppingChanges) > 0 || o.ToppingChangeSummary == "" {
		return o.ToppingChanges
	}
	return Parse(o.ToppingChangeSummary)
}

// Message renders one topping-change statement.
func Message(orderNumber string, f snapshot.ToppingFact) string {
	return fmt.Sprintf("【%s】でネタ変更が行われました: 「%s: %s 追加」",
		orderNumber, f.Product, strings.Join(f.Toppings, ToppingSeparator))
}

// Reconcile reports topping additions for every order line present in both
// snapshots. Order lines that only exist in after are skipped: their
// toppings are part of the order-added statement.
func Reconcile(before, after snapshot.Snapshot) []string {
	ids := make([]string, 0, len(after.Orders))
	for id := range after.Orders {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ir.CompareKeys)

	var out []string
	for _, id := range ids {
		prev, ok := before.Orders[id]
		if !ok {
			continue
		}
		cur := after.Orders[id]
		bf, af := FactsOf(prev), FactsOf(cur)
		if prev.ToppingChangeSummary == cur.ToppingChangeSummary && factsEqual(bf, af) {
			continue
		}
		for _, f := range Added(bf, af) {
			out = append(out, Message(cur.DisplayNumber(), f))
		}
	}
	return out
}

func factsEqual(a, b []snapshot.ToppingFact) bool {
	return slices.EqualFunc(a, b, func(x, y snapshot.ToppingFact) bool {
		return x.Product == y.Product && slices.Equal(x.Toppings, y.Toppings)
	})
}
