// Package snapshot defines the canonical, diff-friendly shape of one order's
// state at one point in time, and lowers it into an ir value tree with a
// fixed field order.
//
// Snapshots are immutable values rebuilt for every comparison. They are
// produced by the normalize package and consumed by diff, topping and format.
package snapshot

import (
	"strings"

	"github.com/roach88/ordertrail/internal/ir"
)

// Field keys used in the lowered tree. Delta paths are built from these.
const (
	KeyCustomer         = "customer"
	KeyOrders           = "orders"
	KeyReceptionNumber  = "receptionNumber"
	KeyAllocationNumber = "allocationNumber"
	KeySelectedYear     = "selectedYear"

	KeyContactName   = "contactName"
	KeyTel           = "tel"
	KeyCompanyName   = "companyName"
	KeyEmail         = "email"
	KeyAddress       = "address"
	KeyFloor         = "floor"
	KeyPaymentMethod = "paymentMethod"

	KeyOrderNumber           = "orderNumber"
	KeyDeliveryDateTime      = "deliveryDateTime"
	KeyDeliveryAddress       = "deliveryAddress"
	KeyDeliveryMethod        = "deliveryMethod"
	KeyToppingChangeSummary  = "toppingChangeSummary"
	KeyToppingChangeFlag     = "toppingChangeFlag"
	KeyToppingChangeFreeText = "toppingChangeFreeText"
	KeyToppingChanges        = "toppingChanges"
	KeyMainItems             = "mainItems"
	KeySideItems             = "sideItems"

	KeyName      = "name"
	KeyQuantity  = "quantity"
	KeyUnitPrice = "unitPrice"
	KeyNotes     = "notes"

	KeyProduct  = "product"
	KeyToppings = "toppings"
)

// LegacyKeyPrefix prefixes the positional key given to order lines that
// carry no internal id.
const LegacyKeyPrefix = "legacy#"

// Customer holds the ordering customer's contact and billing fields.
type Customer struct {
	ContactName   string
	Tel           string
	CompanyName   string
	Email         string
	Address       string
	Floor         string
	PaymentMethod string
}

// MainItem is one ordered product line. Quantity is always non-zero.
type MainItem struct {
	Name      string
	Quantity  int64
	UnitPrice int64
	Notes     string
}

// SideItem is one ordered side dish. Quantity is always non-zero.
type SideItem struct {
	Name     string
	Quantity int64
}

// ToppingFact records that a product had toppings substituted in.
// Toppings keeps first-seen order and has no duplicates.
type ToppingFact struct {
	Product  string
	Toppings []string
}

// Order is one order line of a reception.
type Order struct {
	// InternalID is the caller-assigned immutable id, or a legacy#N key.
	InternalID string
	// Legacy is set when the raw line had no internal id and was keyed by position.
	Legacy bool

	OrderNumber           string
	DeliveryDateTime      string
	DeliveryAddress       string
	DeliveryMethod        string
	MainItems             []MainItem
	SideItems             []SideItem
	ToppingChangeSummary  string
	ToppingChangeFlag     bool
	ToppingChangeFreeText string
	ToppingChanges        []ToppingFact
}

// NoOrderNumber is shown for order lines whose display number is blank.
const NoOrderNumber = "番号未設定"

// DisplayNumber returns the customer-visible order number for messages.
func (o Order) DisplayNumber() string {
	if o.OrderNumber == "" {
		return NoOrderNumber
	}
	return o.OrderNumber
}

// Snapshot is the full normalized state of one reception.
type Snapshot struct {
	Customer         Customer
	Orders           map[string]Order
	ReceptionNumber  string
	AllocationNumber string
	SelectedYear     int
}

// Empty returns the empty-but-valid snapshot used for absent input.
func Empty() Snapshot {
	return Snapshot{Orders: map[string]Order{}}
}

// Order returns the order line with the given internal id.
func (s Snapshot) Order(id string) (Order, bool) {
	o, ok := s.Orders[id]
	return o, ok
}

// LegacyOrders returns the order lines keyed by position, in key order.
func (s Snapshot) LegacyOrders() []Order {
	var out []Order
	for _, k := range s.orderMap().SortedKeys() {
		if o := s.Orders[k]; o.Legacy {
			out = append(out, o)
		}
	}
	return out
}

// IsLegacyKey reports whether key was assigned positionally.
func IsLegacyKey(key string) bool {
	return strings.HasPrefix(key, LegacyKeyPrefix)
}

// Value lowers the snapshot into an ir tree.
//
// Empty strings and a zero year lower to ir.Null so that a field appearing
// for the first time diffs as NEW and a cleared field as DELETED.
func (s Snapshot) Value() ir.Record {
	return ir.Record{
		ir.F(KeyCustomer, s.Customer.Value()),
		ir.F(KeyOrders, s.orderMap()),
		ir.F(KeyReceptionNumber, str(s.ReceptionNumber)),
		ir.F(KeyAllocationNumber, str(s.AllocationNumber)),
		ir.F(KeySelectedYear, year(s.SelectedYear)),
	}
}

func (s Snapshot) orderMap() ir.Map {
	m := make(ir.Map, len(s.Orders))
	for id, o := range s.Orders {
		m[id] = o.Value()
	}
	return m
}

// Value lowers the customer record.
func (c Customer) Value() ir.Record {
	return ir.Record{
		ir.F(KeyContactName, str(c.ContactName)),
		ir.F(KeyTel, str(c.Tel)),
		ir.F(KeyCompanyName, str(c.CompanyName)),
		ir.F(KeyEmail, str(c.Email)),
		ir.F(KeyAddress, str(c.Address)),
		ir.F(KeyFloor, str(c.Floor)),
		ir.F(KeyPaymentMethod, str(c.PaymentMethod)),
	}
}

// Value lowers an order line: scalar fields first, then main items, side
// items and the topping fields.
func (o Order) Value() ir.Record {
	mains := make(ir.List, len(o.MainItems))
	for i, it := range o.MainItems {
		mains[i] = it.Value()
	}
	sides := make(ir.List, len(o.SideItems))
	for i, it := range o.SideItems {
		sides[i] = it.Value()
	}
	facts := make(ir.List, len(o.ToppingChanges))
	for i, f := range o.ToppingChanges {
		facts[i] = f.Value()
	}
	return ir.Record{
		ir.F(KeyOrderNumber, str(o.OrderNumber)),
		ir.F(KeyDeliveryDateTime, str(o.DeliveryDateTime)),
		ir.F(KeyDeliveryAddress, str(o.DeliveryAddress)),
		ir.F(KeyDeliveryMethod, str(o.DeliveryMethod)),
		ir.F(KeyMainItems, mains),
		ir.F(KeySideItems, sides),
		ir.F(KeyToppingChangeSummary, str(o.ToppingChangeSummary)),
		ir.F(KeyToppingChangeFlag, ir.Bool(o.ToppingChangeFlag)),
		ir.F(KeyToppingChangeFreeText, str(o.ToppingChangeFreeText)),
		ir.F(KeyToppingChanges, facts),
	}
}

// Value lowers a main item.
func (m MainItem) Value() ir.Record {
	return ir.Record{
		ir.F(KeyName, str(m.Name)),
		ir.F(KeyQuantity, ir.Int(m.Quantity)),
		ir.F(KeyUnitPrice, ir.Int(m.UnitPrice)),
		ir.F(KeyNotes, str(m.Notes)),
	}
}

// Value lowers a side item.
func (s SideItem) Value() ir.Record {
	return ir.Record{
		ir.F(KeyName, str(s.Name)),
		ir.F(KeyQuantity, ir.Int(s.Quantity)),
	}
}

// Value lowers a topping fact.
func (f ToppingFact) Value() ir.Record {
	ts := make(ir.List, len(f.Toppings))
	for i, t := range f.Toppings {
		ts[i] = ir.String(t)
	}
	return ir.Record{
		ir.F(KeyProduct, str(f.Product)),
		ir.F(KeyToppings, ts),
	}
}

// Hash returns the content hash of the lowered snapshot.
func (s Snapshot) Hash() string {
	return ir.MustHash(ir.DomainSnapshot, s.Value())
}

func str(s string) ir.Value {
	if s == "" {
		return ir.Null{}
	}
	return ir.String(s)
}

func year(y int) ir.Value {
	if y == 0 {
		return ir.Null{}
	}
	return ir.Int(y)
}
