package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalToBuffer(t *testing.T) {
	buf, err := MarshalToBuffer(map[string]any{"x": 1.5, "label": "<a>"})
	require.NoError(t, err)
	defer PutBuffer(buf)
	assert.Equal(t, `{"label":"<a>","x":1.5}`, buf.String())

	_, err = MarshalToBuffer(make(chan int))
	assert.Error(t, err)
}

func TestStreamingEncoder_Lines(t *testing.T) {
	var out bytes.Buffer
	enc := NewStreamingEncoder(&out, false)
	require.NoError(t, enc.Encode(map[string]int{"a": 1}))
	require.NoError(t, enc.Encode(map[string]int{"a": 2}))
	require.NoError(t, enc.Close())
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", out.String())
	assert.Equal(t, 2, enc.Count())
}

func TestStreamingEncoder_Array(t *testing.T) {
	var out bytes.Buffer
	enc := NewStreamingEncoder(&out, true)
	require.NoError(t, enc.Encode(1))
	require.NoError(t, enc.Encode(2))
	require.NoError(t, enc.Close())

	var got []int
	require.NoError(t, Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []int{1, 2}, got)

	out.Reset()
	empty := NewStreamingEncoder(&out, true)
	require.NoError(t, empty.Close())
	assert.Equal(t, "[]\n", out.String())
}
