package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrInvalidCursor is returned for a lastEvaluatedKey that is not a flat
// object of string and number attributes.
var ErrInvalidCursor = errors.New("repository: invalid cursor")

// isoMillis matches the ISO-8601 form the dashboard compares lexically.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func strValue(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

// encodeKey renders a LastEvaluatedKey as a plain JSON object so callers can
// hand it back unchanged. Only string and number key attributes occur.
func encodeKey(key map[string]types.AttributeValue) (json.RawMessage, error) {
	if len(key) == 0 {
		return nil, nil
	}
	plain := make(map[string]any, len(key))
	for name, v := range key {
		switch tv := v.(type) {
		case *types.AttributeValueMemberS:
			plain[name] = tv.Value
		case *types.AttributeValueMemberN:
			plain[name] = json.Number(tv.Value)
		default:
			return nil, fmt.Errorf("unsupported key attribute %q", name)
		}
	}
	return json.Marshal(plain)
}

// decodeKey is the inverse of encodeKey. A JSON null decodes to no key.
func decodeKey(raw json.RawMessage) (map[string]types.AttributeValue, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var plain map[string]any
	if err := dec.Decode(&plain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for name, v := range plain {
		switch tv := v.(type) {
		case string:
			key[name] = strValue(tv)
		case json.Number:
			key[name] = &types.AttributeValueMemberN{Value: tv.String()}
		default:
			return nil, fmt.Errorf("%w: unsupported key attribute %q", ErrInvalidCursor, name)
		}
	}
	return key, nil
}

// ValidateCursor checks that raw can be passed back as a page cursor.
func ValidateCursor(raw json.RawMessage) error {
	_, err := decodeKey(raw)
	return err
}
