package store

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/spf13/cast"

	"SaveKeeper/internal/save/codec"
	"SaveKeeper/internal/save/saveerr"
)

// Get 读取一条记录并转换成 T。
//
//   - 缺失：返回 (zero, false, nil)，不是错误；
//   - 可转换：返回 (value, true, nil)；
//   - 无法转换：返回 (zero, true, TYPE_MISMATCH)，store 本身不受影响。
//
// 转换顺序：类型断言 → 标量走 cast 的 convertible 路径 → 结构化 token 走 codec.Materialize。
func Get[T any](s *Store, bucket, key string) (T, bool, error) {
	var zero T
	raw, ok := s.Lookup(bucket, key)
	if !ok {
		return zero, false, nil
	}
	v, err := Convert[T](raw)
	if err != nil {
		return zero, true, mismatch(BucketName(bucket), key, raw, reflect.TypeFor[T](), err)
	}
	return v, true, nil
}

// Convert 按 Get 的规则把存储值转换成 T，不带 bucket/key 上下文。
func Convert[T any](raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	target := reflect.TypeFor[T]()
	switch {
	case codec.IsScalarType(reflect.TypeOf(raw)):
		if !codec.IsScalarType(target) {
			return zero, fmt.Errorf("scalar %T cannot become %s", raw, target)
		}
		rv, err := convertScalar(raw, target)
		if err != nil {
			return zero, err
		}
		return rv.Interface().(T), nil
	case codec.IsStructured(raw):
		return codec.Materialize[T](raw)
	default:
		return zero, fmt.Errorf("unsupported stored type %T", raw)
	}
}

func convertScalar(raw any, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return out, err
		}
		out.SetString(s)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return out, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(raw)
		if err != nil {
			return out, err
		}
		if out.OverflowInt(n) {
			return out, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toUint64(raw)
		if err != nil {
			return out, err
		}
		if out.OverflowUint(n) {
			return out, fmt.Errorf("%d overflows %s", n, target)
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return out, err
		}
		if out.OverflowFloat(f) {
			return out, fmt.Errorf("%g overflows %s", f, target)
		}
		out.SetFloat(f)
	default:
		return out, fmt.Errorf("unsupported scalar target %s", target)
	}
	return out, nil
}

var errNotIntegral = errors.New("value is not an integer")

// toInt64 只接受十进制文本与整值浮点，不做截断与进制推断。
func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case codec.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt64(f)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", rv.Uint())
		}
		return int64(rv.Uint()), nil
	case reflect.String:
		return strconv.ParseInt(rv.String(), 10, 64)
	}
	return cast.ToInt64E(raw)
}

func toUint64(raw any) (uint64, error) {
	switch v := raw.(type) {
	case codec.Number:
		if n, err := strconv.ParseUint(string(v), 10, 64); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return floatToUint64(f)
	case string:
		return strconv.ParseUint(v, 10, 64)
	case float64:
		return floatToUint64(v)
	case float32:
		return floatToUint64(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Int() < 0 {
			return 0, fmt.Errorf("%d is negative", rv.Int())
		}
		return uint64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.String:
		return strconv.ParseUint(rv.String(), 10, 64)
	}
	return cast.ToUint64E(raw)
}

// 2^63 与 2^64 在 float64 中可精确表示，作为开区间上界。
func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%g: %w", f, errNotIntegral)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%g overflows int64", f)
	}
	return int64(f), nil
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%g: %w", f, errNotIntegral)
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, fmt.Errorf("%g overflows uint64", f)
	}
	return uint64(f), nil
}

func mismatch(bucket, key string, raw any, want reflect.Type, cause error) error {
	actual := fmt.Sprintf("%T", raw)
	return saveerr.ErrTypeMismatch.
		WithMsg(fmt.Sprintf("key %q in bucket %q was stored as %s, cannot convert to %s", key, bucket, actual, want)).
		WithDataMap(map[string]any{
			"bucket":      bucket,
			"key":         key,
			"actual_type": actual,
			"want_type":   want.String(),
		}).
		WithCause(cause)
}
