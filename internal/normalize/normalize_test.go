package normalize

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ordertrail/internal/diff"
	"github.com/roach88/ordertrail/internal/master"
	"github.com/roach88/ordertrail/internal/snapshot"
)

func testMaster() master.Master {
	return master.Master{
		Year: 2024,
		Items: map[string]master.Item{
			"kiwami": {Name: "極", Price: 3000, Toppings: []master.Topping{
				{ID: "t1", Name: "まぐろ"},
				{ID: "t2", Name: "うに"},
			}},
			"karaage": {Name: "唐揚げ", Price: 500},
		},
	}
}

const plainDoc = `{
  "customer": {"contactName": " 山田 ", "tel": "03-0000-0000", "paymentMethod": "請求書"},
  "orders": [{
    "internalId": "o-1",
    "orderNumber": "A-1",
    "deliveryDate": "2024-05-01",
    "deliveryTime": "11:30",
    "deliveryAddress": "本社",
    "orderItems": [
      {"productKey": "kiwami", "name": "ignored", "quantity": "2", "unitPrice": 3000,
       "toppingChangePatterns": [{"count": 1, "selectedToppings": ["t1"]}, {"selectedToppings": ["t2", "t1", "いくら"]}]},
      {"name": "並", "quantity": 0}
    ],
    "sideOrders": {"karaage": 1, "unknown": 2, "zero": 0},
    "toppingChangeFlag": true,
    "toppingChangeText": "わさび抜き"
  }],
  "receptionNumber": "R-100",
  "allocationNumber": 7,
  "selectedYear": "2024"
}`

func TestNormalizePlain(t *testing.T) {
	s, err := Normalize(json.RawMessage(plainDoc), testMaster())
	require.NoError(t, err)

	assert.Equal(t, "山田", s.Customer.ContactName)
	assert.Equal(t, "請求書", s.Customer.PaymentMethod)
	assert.Equal(t, "R-100", s.ReceptionNumber)
	assert.Equal(t, "7", s.AllocationNumber)
	assert.Equal(t, 2024, s.SelectedYear)

	require.Len(t, s.Orders, 1)
	o, ok := s.Order("o-1")
	require.True(t, ok)
	assert.False(t, o.Legacy)
	assert.Equal(t, "A-1", o.OrderNumber)
	assert.Equal(t, "2024-05-01 11:30", o.DeliveryDateTime)
	assert.Equal(t, "本社", o.DeliveryAddress)
	assert.True(t, o.ToppingChangeFlag)
	assert.Equal(t, "わさび抜き", o.ToppingChangeFreeText)

	require.Len(t, o.MainItems, 1, "zero-quantity items are dropped")
	assert.Equal(t, snapshot.MainItem{Name: "極", Quantity: 2, UnitPrice: 3000}, o.MainItems[0])

	assert.Equal(t, []snapshot.SideItem{
		{Name: "唐揚げ", Quantity: 1},
		{Name: "unknown", Quantity: 2},
	}, o.SideItems)

	assert.Equal(t, []snapshot.ToppingFact{
		{Product: "極", Toppings: []string{"まぐろ", "うに", "いくら"}},
	}, o.ToppingChanges)
	assert.Equal(t, "極: まぐろ、うに、いくら", o.ToppingChangeSummary)
}

func TestNormalizeAbsent(t *testing.T) {
	for _, raw := range []string{"", "null", "  ", `""`} {
		s, err := Normalize(json.RawMessage(raw), testMaster())
		require.NoError(t, err, "raw=%q", raw)
		assert.Empty(t, s.Orders)
		assert.NotNil(t, s.Orders)
		assert.Equal(t, snapshot.Customer{}, s.Customer)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	s, err := Normalize(json.RawMessage(`{"orders": [`), testMaster())
	require.Error(t, err)
	assert.NotNil(t, s.Orders)
	assert.Empty(t, s.Orders)

	_, err = Normalize(json.RawMessage(`[1,2]`), testMaster())
	require.Error(t, err)
}

func TestNormalizeMistypedFieldsDefault(t *testing.T) {
	raw := `{"customer": "nope", "orders": [{"internalId": "o-1", "orderItems": "x", "orderNumber": {"a": 1}}], "selectedYear": true}`
	s, err := Normalize(json.RawMessage(raw), testMaster())
	require.NoError(t, err)

	o := s.Orders["o-1"]
	assert.Equal(t, "", o.OrderNumber)
	assert.Empty(t, o.MainItems)
	assert.Equal(t, 0, s.SelectedYear)
}

func TestNormalizeDoubleEncoded(t *testing.T) {
	encoded, err := json.Marshal(plainDoc)
	require.NoError(t, err)

	s, err := Normalize(encoded, testMaster())
	require.NoError(t, err)
	assert.Equal(t, "R-100", s.ReceptionNumber)
	assert.Len(t, s.Orders, 1)
}

func TestNormalizeWireTaggedMatchesPlain(t *testing.T) {
	wire := `{
  "customer": {"M": {"contactName": {"S": "山田"}, "tel": {"S": "03-0000-0000"}, "paymentMethod": {"S": "請求書"}}},
  "orders": {"L": [{"M": {
    "internalId": {"S": "o-1"},
    "orderNumber": {"S": "A-1"},
    "deliveryDate": {"S": "2024-05-01"},
    "deliveryTime": {"S": "11:30"},
    "deliveryAddress": {"S": "本社"},
    "orderItems": {"L": [
      {"M": {"productKey": {"S": "kiwami"}, "quantity": {"N": "2"}, "unitPrice": {"N": "3000"},
             "toppingChangePatterns": {"L": [
               {"M": {"count": {"N": "1"}, "selectedToppings": {"SS": ["t1"]}}},
               {"M": {"selectedToppings": {"L": [{"S": "t2"}, {"S": "t1"}, {"S": "いくら"}]}}}
             ]}}},
      {"M": {"name": {"S": "並"}, "quantity": {"N": "0"}}}
    ]},
    "sideOrders": {"M": {"karaage": {"N": "1"}, "unknown": {"N": "2"}, "zero": {"N": "0"}}},
    "toppingChangeFlag": {"BOOL": true},
    "toppingChangeText": {"S": "わさび抜き"},
    "legacyNote": {"NULL": true}
  }}]},
  "receptionNumber": {"S": "R-100"},
  "allocationNumber": {"N": "7"},
  "selectedYear": {"N": "2024"}
}`

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(wire), &doc))
	assert.True(t, IsWireTagged(doc))

	fromWire, err := Normalize(json.RawMessage(wire), testMaster())
	require.NoError(t, err)
	fromPlain, err := Normalize(json.RawMessage(plainDoc), testMaster())
	require.NoError(t, err)

	assert.Empty(t, diff.Diff(fromPlain, fromWire))
}

func TestIsWireTagged(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want bool
	}{
		{"empty", map[string]any{}, false},
		{"plain", map[string]any{"receptionNumber": "R-1"}, false},
		{"tagged", map[string]any{"receptionNumber": map[string]any{"S": "R-1"}}, true},
		{"mixed", map[string]any{"a": map[string]any{"S": "x"}, "b": "y"}, false},
		{"unknown tag", map[string]any{"a": map[string]any{"X": "x"}}, false},
		{"two keys", map[string]any{"a": map[string]any{"S": "x", "N": "1"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWireTagged(tt.doc))
		})
	}
}

func TestEncodeWireRoundTrip(t *testing.T) {
	avs := map[string]types.AttributeValue{
		"receptionNumber": &types.AttributeValueMemberS{Value: "R-1"},
		"selectedYear":    &types.AttributeValueMemberN{Value: "2024"},
		"orders": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"internalId":  &types.AttributeValueMemberS{Value: "o-1"},
				"orderNumber": &types.AttributeValueMemberS{Value: "A-1"},
			}},
		}},
	}

	raw, err := EncodeWire(avs)
	require.NoError(t, err)

	s, err := Normalize(raw, master.Master{})
	require.NoError(t, err)
	assert.Equal(t, "R-1", s.ReceptionNumber)
	assert.Equal(t, 2024, s.SelectedYear)
	assert.Equal(t, "A-1", s.Orders["o-1"].OrderNumber)
}

func TestNormalizeLegacyKeys(t *testing.T) {
	raw := `{"orders": [
      {"orderNumber": "A-1"},
      {"internalId": "o-2", "orderNumber": "A-2"},
      {"internalId": "o-2", "orderNumber": "A-3"}
    ]}`
	s, err := Normalize(json.RawMessage(raw), master.Master{})
	require.NoError(t, err)

	require.Len(t, s.Orders, 3)
	assert.True(t, s.Orders["legacy#0"].Legacy)
	assert.Equal(t, "A-1", s.Orders["legacy#0"].OrderNumber)
	assert.False(t, s.Orders["o-2"].Legacy)
	assert.Equal(t, "A-2", s.Orders["o-2"].OrderNumber)
	assert.True(t, s.Orders["legacy#2"].Legacy, "duplicate ids fall back to position")
	assert.True(t, snapshot.IsLegacyKey("legacy#2"))

	legacy := s.LegacyOrders()
	require.Len(t, legacy, 2)
	assert.Equal(t, "A-1", legacy[0].OrderNumber)
}

func TestNormalizeLegacyKeyDoesNotOverwriteRealID(t *testing.T) {
	raw := `{"orders": [
      {"internalId": "legacy#1", "orderNumber": "A-1"},
      {"orderNumber": "A-2"}
    ]}`
	s, err := Normalize(json.RawMessage(raw), master.Master{})
	require.NoError(t, err)

	require.Len(t, s.Orders, 2)
	assert.Equal(t, "A-1", s.Orders["legacy#1"].OrderNumber)
	assert.False(t, s.Orders["legacy#1"].Legacy)
	assert.Equal(t, "A-2", s.Orders["legacy#1-1"].OrderNumber)
	assert.True(t, s.Orders["legacy#1-1"].Legacy)
}

func TestNormalizeOrdersAsMap(t *testing.T) {
	raw := `{"orders": {"o-2": {"orderNumber": "B"}, "o-1": {"orderNumber": "A"}}}`
	s, err := Normalize(json.RawMessage(raw), master.Master{})
	require.NoError(t, err)

	assert.Equal(t, "A", s.Orders["o-1"].OrderNumber)
	assert.Equal(t, "B", s.Orders["o-2"].OrderNumber)
}

func TestNormalizeLegacySummaryKept(t *testing.T) {
	raw := `{"orders": [{"internalId": "o-1", "toppingChangeSummary": "極: まぐろ"}]}`
	s, err := Normalize(json.RawMessage(raw), master.Master{})
	require.NoError(t, err)

	o := s.Orders["o-1"]
	assert.Equal(t, "極: まぐろ", o.ToppingChangeSummary)
	assert.Empty(t, o.ToppingChanges)
}

func TestNormalizeIdempotentDiff(t *testing.T) {
	a, err := Normalize(json.RawMessage(plainDoc), testMaster())
	require.NoError(t, err)
	b, err := Normalize(json.RawMessage(plainDoc), testMaster())
	require.NoError(t, err)

	assert.Empty(t, diff.Diff(a, b))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestNormalizeFullWidthDigits(t *testing.T) {
	raw := `{"orders": [{"internalId": "o-1", "orderItems": [{"name": "並", "quantity": "３"}]}]}`
	s, err := Normalize(json.RawMessage(raw), master.Master{})
	require.NoError(t, err)

	require.Len(t, s.Orders["o-1"].MainItems, 1)
	assert.Equal(t, int64(3), s.Orders["o-1"].MainItems[0].Quantity)
}
