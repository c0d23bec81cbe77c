package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
)

// Unmarshaler allows custom types to implement their own TLV value parsing.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

// Unmarshal decodes raw TLV data and maps it into a target Go struct using
// `tlv:"TAG"` struct tags.
//
// Supported field kinds:
//   - []byte:   receives the first value decoded for the tag
//   - [][]byte: receives every value decoded for the tag, in order
//   - string:   receives the hex representation of the first value
//   - any type implementing Unmarshaler: receives the first value
//
// Tags absent from the data leave their fields untouched.
func Unmarshal(data []byte, target interface{}) error {
	parsed, err := Decode(data)
	if err != nil {
		return err
	}
	return UnmarshalFromMap(parsed, target)
}

// UnmarshalFromMap maps an already decoded Map onto a target struct.
func UnmarshalFromMap(parsed Map, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("tlv: target must be a non-nil pointer")
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("tlv: target must point to a struct")
	}
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tagConfig := t.Field(i).Tag.Get("tlv")
		if tagConfig == "" {
			continue
		}

		tagHex := strings.ToUpper(strings.Split(tagConfig, ",")[0])
		values := parsed.Values(tagHex)
		if len(values) == 0 {
			continue
		}

		if err := mapValuesToField(values, field); err != nil {
			return fmt.Errorf("tlv: tag %s: %w", tagHex, err)
		}
	}

	return nil
}

func mapValuesToField(values [][]byte, field reflect.Value) error {
	// 1. Custom Unmarshaler
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(values[0])
		}
	}

	// 2. Multi-valued byte slices
	if isByteSliceSlice(field) {
		field.Set(reflect.ValueOf(values))
		return nil
	}

	// 3. Byte slices
	if isByteSlice(field) {
		field.SetBytes(values[0])
		return nil
	}

	// 4. Strings (hex representation)
	if field.Kind() == reflect.String {
		field.SetString(hex.EncodeToString(values[0]))
		return nil
	}

	return fmt.Errorf("unsupported field kind %s", field.Kind())
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isByteSliceSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice &&
		v.Type().Elem().Kind() == reflect.Slice &&
		v.Type().Elem().Elem().Kind() == reflect.Uint8
}
