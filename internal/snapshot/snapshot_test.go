package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordertrail/internal/ir"
)

func TestDisplayNumber(t *testing.T) {
	assert.Equal(t, "A-1", Order{OrderNumber: "A-1"}.DisplayNumber())
	assert.Equal(t, NoOrderNumber, Order{}.DisplayNumber())
}

func TestEmptyHasOrders(t *testing.T) {
	s := Empty()
	require.NotNil(t, s.Orders)
	_, ok := s.Order("o-1")
	assert.False(t, ok)
}

func TestValueLowersBlankToNull(t *testing.T) {
	v := Empty().Value()
	assert.Equal(t, []string{KeyCustomer, KeyOrders, KeyReceptionNumber, KeyAllocationNumber, KeySelectedYear}, v.Keys())

	rn, ok := v.Get(KeyReceptionNumber)
	require.True(t, ok)
	assert.Equal(t, ir.Null{}, rn)

	y, _ := v.Get(KeySelectedYear)
	assert.Equal(t, ir.Null{}, y)

	s := Empty()
	s.SelectedYear = 2024
	y, _ = s.Value().Get(KeySelectedYear)
	assert.Equal(t, ir.Int(2024), y)
}

func TestOrderValueFieldOrder(t *testing.T) {
	assert.Equal(t, []string{
		KeyOrderNumber, KeyDeliveryDateTime, KeyDeliveryAddress, KeyDeliveryMethod,
		KeyMainItems, KeySideItems,
		KeyToppingChangeSummary, KeyToppingChangeFlag, KeyToppingChangeFreeText, KeyToppingChanges,
	}, Order{}.Value().Keys(), "items come before the topping fields")
}

func TestLegacyOrders(t *testing.T) {
	s := Empty()
	s.Orders["o-1"] = Order{InternalID: "o-1", OrderNumber: "A-1"}
	s.Orders[LegacyKeyPrefix+"1"] = Order{InternalID: LegacyKeyPrefix + "1", Legacy: true, OrderNumber: "B-2"}
	s.Orders[LegacyKeyPrefix+"0"] = Order{InternalID: LegacyKeyPrefix + "0", Legacy: true, OrderNumber: "B-1"}

	legacy := s.LegacyOrders()
	require.Len(t, legacy, 2)
	assert.Equal(t, "B-1", legacy[0].OrderNumber)
	assert.Equal(t, "B-2", legacy[1].OrderNumber)

	assert.True(t, IsLegacyKey("legacy#3"))
	assert.False(t, IsLegacyKey("o-1"))
}

func TestHash(t *testing.T) {
	a := Empty()
	a.Orders["o-1"] = Order{InternalID: "o-1", MainItems: []MainItem{{Name: "極", Quantity: 2}}}
	b := Empty()
	b.Orders["o-1"] = Order{InternalID: "o-1", MainItems: []MainItem{{Name: "極", Quantity: 2}}}

	assert.Equal(t, a.Hash(), b.Hash())

	b.Orders["o-1"] = Order{InternalID: "o-1", MainItems: []MainItem{{Name: "極", Quantity: 3}}}
	assert.NotEqual(t, a.Hash(), b.Hash())
}
