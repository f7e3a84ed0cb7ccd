package format

import (
	"fmt"
	"strings"

	"github.com/roach88/ordertrail/internal/ir"
	"github.com/roach88/ordertrail/internal/snapshot"
)

// None is rendered in place of an empty value.
const None = "（なし）"

// Field labels. A field missing here falls through to the diagnostic rule.
var (
	customerLabels = map[string]string{
		snapshot.KeyContactName:   "担当者名",
		snapshot.KeyTel:           "電話番号",
		snapshot.KeyCompanyName:   "会社名",
		snapshot.KeyEmail:         "メールアドレス",
		snapshot.KeyAddress:       "住所",
		snapshot.KeyFloor:         "階数",
		snapshot.KeyPaymentMethod: "支払方法",
	}
	orderLabels = map[string]string{
		snapshot.KeyOrderNumber:      "注文番号",
		snapshot.KeyDeliveryDateTime: "配達日時",
		snapshot.KeyDeliveryAddress:  "配達先",
		snapshot.KeyDeliveryMethod:   "配達方法",
	}
	itemLabels = map[string]string{
		snapshot.KeyQuantity:  "数量",
		snapshot.KeyNotes:     "備考",
		snapshot.KeyUnitPrice: "単価",
	}
	topLevelLabels = map[string]string{
		snapshot.KeyReceptionNumber:  "受付番号",
		snapshot.KeyAllocationNumber: "割当番号",
		snapshot.KeySelectedYear:     "年度",
	}
)

// display renders a delta side, substituting None for absent values.
func display(v ir.Value) string {
	if s := ir.Text(v); s != "" {
		return s
	}
	return None
}

func changed(subject, label string, lhs, rhs ir.Value) string {
	return fmt.Sprintf("%s%sが %s から %s に変更されました。", subject, label, display(lhs), display(rhs))
}

func orderSubject(number string) string {
	return "【" + number + "】の"
}

func itemSubject(number, item string) string {
	return "【" + number + "】の「" + item + "」の"
}

func orderAdded(number string) string {
	return "【" + number + "】の注文が追加されました。"
}

func itemAdded(number, item string, qty int64) string {
	return fmt.Sprintf("【%s】に「%s」が %d 個追加されました。", number, item, qty)
}

func itemRemoved(number, item string) string {
	return fmt.Sprintf("【%s】から「%s」が削除されました。", number, item)
}

func itemReplaced(number string, pos int, lhs, rhs ir.Value) string {
	return fmt.Sprintf("【%s】の %d 番目の商品が %s から %s に変更されました。", number, pos, display(lhs), display(rhs))
}

// canceledBlock renders the multi-line statement for a whole canceled order.
func canceledBlock(number, deliveryDateTime string, items []line, extra []string) string {
	var b strings.Builder
	b.WriteString("【" + number + "】の注文がキャンセルされました。")
	b.WriteString("\n配達日時: ")
	if deliveryDateTime == "" {
		b.WriteString(None)
	} else {
		b.WriteString(deliveryDateTime)
	}
	for _, it := range items {
		fmt.Fprintf(&b, "\n・%s × %d", it.name, it.qty)
	}
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			b.WriteString("\n" + e)
		}
	}
	return b.String()
}

type line struct {
	name string
	qty  int64
}

func orderLines(o snapshot.Order) []line {
	out := make([]line, 0, len(o.MainItems)+len(o.SideItems))
	for _, it := range o.MainItems {
		out = append(out, line{it.Name, it.Quantity})
	}
	for _, it := range o.SideItems {
		out = append(out, line{it.Name, it.Quantity})
	}
	return out
}

// Unhandled renders the diagnostic statement for a delta no rule matched.
func Unhandled(kind, path string, lhs, rhs ir.Value) string {
	return fmt.Sprintf("未対応の変更 [%s] %s: %s → %s", kind, path, display(lhs), display(rhs))
}

// LegacyAnomaly flags an order line compared by position because it has no
// internal id. Edits to such a line may be reported as an add/remove pair.
func LegacyAnomaly(o snapshot.Order) string {
	return "⚠ 内部IDのない注文行を位置で比較しました: 【" + o.DisplayNumber() + "】"
}
