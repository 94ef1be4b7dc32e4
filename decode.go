package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/zoobzio/capitan"
)

// Decode decodes a JSON result into dst, which must be a non-nil pointer.
// Keys are matched against db tags, then field names case-insensitively.
// Numbers decode into bool fields as 0/1, and nested objects that arrive
// as JSON text are parsed in place.
func Decode(result string, dst any) error {
	dec := json.NewDecoder(strings.NewReader(result))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           dst,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToUUIDHook,
			embeddedJSONHook,
		),
	})
	if err != nil {
		return err
	}
	return md.Decode(raw)
}

// decode decodes result into dst and reports a DecodeError on mismatch.
func (f *Forge) decode(ctx context.Context, table, sql, result string, dst any) error {
	if err := Decode(result, dst); err != nil {
		shape := shapeName(dst)
		capitan.Error(ctx, DecodeFailed,
			TableKey.Field(table),
			ShapeKey.Field(shape),
			ErrorKey.Field(err.Error()),
		)
		return &DecodeError{Shape: shape, Result: result, SQL: sql, Err: err}
	}
	return nil
}

func shapeName(dst any) string {
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "nil"
	}
	return t.String()
}

func stringToUUIDHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != uuidType {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}

// embeddedJSONHook parses nested JSON delivered as text. SQLite returns the
// result of a nested scalar subquery as a string rather than as JSON.
func embeddedJSONHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	for to.Kind() == reflect.Pointer {
		to = to.Elem()
	}
	switch to.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Map:
	default:
		return data, nil
	}
	if to == uuidType {
		return data, nil
	}

	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return nil, nil
	}
	if s[0] != '{' && s[0] != '[' {
		return data, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid nested JSON: %w", err)
	}
	return parsed, nil
}
