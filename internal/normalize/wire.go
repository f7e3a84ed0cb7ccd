package normalize

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB attribute-value type tags.
var wireTags = map[string]bool{
	"S": true, "N": true, "B": true, "BOOL": true, "NULL": true,
	"M": true, "L": true, "SS": true, "NS": true, "BS": true,
}

// IsWireTagged reports whether doc looks like a DynamoDB attribute-value map:
// non-empty, and every value is a single-key object keyed by a type tag.
func IsWireTagged(doc map[string]any) bool {
	if len(doc) == 0 {
		return false
	}
	for _, v := range doc {
		if !isTaggedValue(v) {
			return false
		}
	}
	return true
}

func isTaggedValue(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k := range m {
		return wireTags[k]
	}
	return false
}

// Unwrap converts a wire-tagged document into plain values by building the
// SDK attribute values and running them through attributevalue.
// Numbers come back as attributevalue.Number to keep integer precision.
func Unwrap(doc map[string]any) (map[string]any, error) {
	avs := make(map[string]types.AttributeValue, len(doc))
	for k, v := range doc {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		avs[k] = av
	}
	var out map[string]any
	err := attributevalue.UnmarshalMapWithOptions(avs, &out, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal attribute values: %w", err)
	}
	return out, nil
}

func toAttributeValue(v any) (types.AttributeValue, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("not a tagged attribute value: %T", v)
	}
	for tag, inner := range m {
		switch tag {
		case "S":
			return &types.AttributeValueMemberS{Value: text(inner)}, nil
		case "N":
			return &types.AttributeValueMemberN{Value: text(inner)}, nil
		case "BOOL":
			b, _ := inner.(bool)
			return &types.AttributeValueMemberBOOL{Value: b}, nil
		case "NULL":
			return &types.AttributeValueMemberNULL{Value: true}, nil
		case "B":
			b, err := base64.StdEncoding.DecodeString(text(inner))
			if err != nil {
				return nil, fmt.Errorf("B: %w", err)
			}
			return &types.AttributeValueMemberB{Value: b}, nil
		case "SS":
			return &types.AttributeValueMemberSS{Value: texts(inner)}, nil
		case "NS":
			return &types.AttributeValueMemberNS{Value: texts(inner)}, nil
		case "BS":
			var out [][]byte
			for _, s := range texts(inner) {
				b, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, fmt.Errorf("BS: %w", err)
				}
				out = append(out, b)
			}
			return &types.AttributeValueMemberBS{Value: out}, nil
		case "M":
			fields, _ := inner.(map[string]any)
			mm := make(map[string]types.AttributeValue, len(fields))
			for k, fv := range fields {
				av, err := toAttributeValue(fv)
				if err != nil {
					return nil, fmt.Errorf("M.%s: %w", k, err)
				}
				mm[k] = av
			}
			return &types.AttributeValueMemberM{Value: mm}, nil
		case "L":
			elems, _ := inner.([]any)
			ll := make([]types.AttributeValue, len(elems))
			for i, ev := range elems {
				av, err := toAttributeValue(ev)
				if err != nil {
					return nil, fmt.Errorf("L[%d]: %w", i, err)
				}
				ll[i] = av
			}
			return &types.AttributeValueMemberL{Value: ll}, nil
		default:
			return nil, fmt.Errorf("unknown type tag %q", tag)
		}
	}
	return nil, fmt.Errorf("empty attribute value")
}

// EncodeWire renders SDK attribute values as wire-tagged JSON, the form in
// which document-store rows are kept in log blobs.
func EncodeWire(avs map[string]types.AttributeValue) (json.RawMessage, error) {
	doc := make(map[string]any, len(avs))
	for k, av := range avs {
		v, err := fromAttributeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode wire document: %w", err)
	}
	return b, nil
}

func fromAttributeValue(av types.AttributeValue) (map[string]any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": base64.StdEncoding.EncodeToString(v.Value)}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": v.Value}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": v.Value}, nil
	case *types.AttributeValueMemberBS:
		out := make([]string, len(v.Value))
		for i, b := range v.Value {
			out[i] = base64.StdEncoding.EncodeToString(b)
		}
		return map[string]any{"BS": out}, nil
	case *types.AttributeValueMemberM:
		mm := make(map[string]any, len(v.Value))
		for k, inner := range v.Value {
			enc, err := fromAttributeValue(inner)
			if err != nil {
				return nil, fmt.Errorf("M.%s: %w", k, err)
			}
			mm[k] = enc
		}
		return map[string]any{"M": mm}, nil
	case *types.AttributeValueMemberL:
		ll := make([]any, len(v.Value))
		for i, inner := range v.Value {
			enc, err := fromAttributeValue(inner)
			if err != nil {
				return nil, fmt.Errorf("L[%d]: %w", i, err)
			}
			ll[i] = enc
		}
		return map[string]any{"L": ll}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", av)
	}
}
