package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SaveKeeper/modules/kit/errx"
)

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func TestSerialize_标量包进载体(t *testing.T) {
	data, err := Serialize(42)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":42}`, string(data))

	data, err = Serialize("hp")
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"hp"}`, string(data))

	data, err = Serialize(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":null}`, string(data))
}

func TestSerialize_结构体不包载体(t *testing.T) {
	data, err := Serialize(position{X: 1, Y: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(data))
}

func TestDeserialize_按目标类型剥载体(t *testing.T) {
	data, err := Serialize(7)
	require.NoError(t, err)

	n, err := Deserialize[int](data)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	v, err := Deserialize[any](data)
	require.NoError(t, err)
	assert.Equal(t, Number("7"), v)

	data, err = Serialize([]string{"a", "b"})
	require.NoError(t, err)
	list, err := Deserialize[[]string](data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)
}

func TestDeserialize_格式错误返回FORMAT码(t *testing.T) {
	_, err := Deserialize[int]([]byte(`{"value":"x"}`))
	require.Error(t, err)
	assert.True(t, errx.HasCode(err, errx.CodeFormat))

	_, err = Deserialize[position]([]byte(`not json`))
	assert.True(t, errx.HasCode(err, errx.CodeFormat))
}

func TestDeserialize_标量目标必须是载体(t *testing.T) {
	for _, in := range []string{`{"hp":5}`, `{}`, `{"value":1,"extra":2}`, `[1]`, `null`, `5`} {
		_, err := Deserialize[int]([]byte(in))
		assert.True(t, errx.HasCode(err, errx.CodeFormat), "input %s", in)
	}
	_, err := Deserialize[string]([]byte(`{}`))
	assert.True(t, errx.HasCode(err, errx.CodeFormat))

	// 接口目标不是载体时按原样解码。
	v, err := Deserialize[any]([]byte(`{"hp":5}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hp": Number("5")}, v)
}

func TestDeserialize_大整数解进any不丢精度(t *testing.T) {
	data, err := Serialize(int64(9007199254740993))
	require.NoError(t, err)
	v, err := Deserialize[any](data)
	require.NoError(t, err)
	assert.Equal(t, Number("9007199254740993"), v)

	token, err := Token([]byte(`{"id":18446744073709551615}`))
	require.NoError(t, err)
	assert.Equal(t, Number("18446744073709551615"), token.(map[string]any)["id"])

	again, err := Serialize(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":9007199254740993}`, string(again))
}

func TestUnmarshal_尾随数据返回FORMAT码(t *testing.T) {
	var v any
	err := Unmarshal([]byte(`{"value":1} {"value":2}`), &v)
	assert.True(t, errx.HasCode(err, errx.CodeFormat))
	require.NoError(t, Unmarshal([]byte(" {\"value\":1}\n"), &v))
}

func TestMarshal_map按key排序且稳定(t *testing.T) {
	in := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	first, err := Marshal(in)
	require.NoError(t, err)
	second, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Less(t, bytes.Index(first, []byte(`"a"`)), bytes.Index(first, []byte(`"b"`)))
}

func TestMaterialize_结构化token转目标类型(t *testing.T) {
	token, err := Token([]byte(`{"x":3,"y":4}`))
	require.NoError(t, err)
	assert.True(t, IsStructured(token))

	p, err := Materialize[position](token)
	require.NoError(t, err)
	assert.Equal(t, position{X: 3, Y: 4}, p)

	_, err = Materialize[position]("not a token")
	assert.True(t, errx.HasCode(err, errx.CodeFormat))

	_, err = Materialize[[]int](map[string]any{"x": 1})
	assert.Error(t, err)
}
