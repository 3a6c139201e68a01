// Package codec 负责存档值与 JSON 文本之间的转换。
//
// 标量（bool/整数/浮点/字符串/nil）没有对象根，不能单独作为一份文档保存，
// Serialize 会把它们包进 {"value": ...} 载体；Deserialize 按目标类型剥掉载体。
package codec

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"

	"SaveKeeper/modules/kit/errx"
)

// RawMessage 是延迟解码的 JSON 片段。
type RawMessage = stdjson.RawMessage

// Number 是解进 any 时数字的表示，保留原始字面量，超过 2^53 的整数不丢精度。
type Number = stdjson.Number

const carrierField = "value"

type carrier[T any] struct {
	Value T `json:"value"`
}

// Marshal 输出缩进、map key 有序的 JSON；同样的输入总是得到同样的字节。
func Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errx.ErrFormat.WithMsg("encode value").WithCause(err)
	}
	return data, nil
}

// Compact 输出紧凑 JSON，用于嵌入到更大的文档里。
func Compact(v any) (RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errx.ErrFormat.WithMsg("encode value").WithCause(err)
	}
	return data, nil
}

// Unmarshal 解码恰好一个 JSON 值；解进 any 的数字是 Number 而不是 float64。
func Unmarshal(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errx.ErrFormat.WithMsg("decode value").WithCause(err)
	}
	if dec.More() {
		return errx.ErrFormat.WithMsg("decode value").WithCause(errors.New("trailing data after JSON value"))
	}
	return nil
}

// Serialize 编码一个独立值；标量会被包进载体。
func Serialize(v any) (RawMessage, error) {
	if v == nil || isScalar(reflect.TypeOf(v)) {
		return Compact(carrier[any]{Value: v})
	}
	return Compact(v)
}

// Deserialize 解码 Serialize 的输出。
//   - T 是标量：输入必须是载体，否则 FORMAT_ERROR；
//   - T 是接口：只有一个 value 字段的对象视为载体；
//   - 其它：直接解码。
func Deserialize[T any](data []byte) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	switch {
	case isScalar(t):
		inner, err := Unwrap(data)
		if err != nil {
			return zero, err
		}
		data = inner
	case t.Kind() == reflect.Interface:
		if inner, err := Unwrap(data); err == nil {
			data = inner
		}
	}
	var out T
	if err := Unmarshal(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// Unwrap 取出载体里的值；输入不是恰好只有 value 字段的对象时返回 FORMAT_ERROR。
func Unwrap(data []byte) (RawMessage, error) {
	var fields map[string]RawMessage
	if err := Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	inner, ok := fields[carrierField]
	if !ok || len(fields) != 1 {
		return nil, errx.ErrFormat.WithMsg(fmt.Sprintf("expected a scalar carrier with a single %q field", carrierField))
	}
	return inner, nil
}

// Token 把 JSON 解码为通用结构（map[string]any / []any / Number / string / bool / nil）。
func Token(data []byte) (any, error) {
	var out any
	if err := Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsStructured 报告值是否为 Materialize 能处理的结构化 token。
func IsStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any, RawMessage:
		return true
	}
	return false
}

// Materialize 把结构化 token 转成目标类型：先编码，再按 T 解码。
func Materialize[T any](token any) (T, error) {
	var zero T
	if !IsStructured(token) {
		return zero, errx.ErrFormat.WithMsg(fmt.Sprintf("cannot materialize %T", token))
	}
	data, ok := token.(RawMessage)
	if !ok {
		var err error
		if data, err = Compact(token); err != nil {
			return zero, err
		}
	}
	var out T
	if err := Unmarshal(data, &out); err != nil {
		return zero, errx.ErrFormat.WithMsg(fmt.Sprintf("materialize %s", reflect.TypeFor[T]())).WithCause(err)
	}
	return out, nil
}

// IsScalarType 报告类型是否属于需要载体的标量。
func IsScalarType(t reflect.Type) bool {
	return isScalar(t)
}

// Number 的 Kind 是 String，同样按标量处理。
func isScalar(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
