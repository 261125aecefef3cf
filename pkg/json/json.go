// Package json wraps goccy/go-json with pooled buffers and a streaming
// encoder for sample output.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

const maxPooledBuffer = 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// MarshalToBuffer encodes v into a pooled buffer without a trailing
// newline. Release the buffer with PutBuffer.
func MarshalToBuffer(v interface{}) (*bytes.Buffer, error) {
	buf := GetBuffer()
	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		PutBuffer(buf)
		return nil, err
	}
	buf.Truncate(buf.Len() - 1)
	return buf, nil
}

// StreamingEncoder writes values as JSON lines or as one JSON array.
type StreamingEncoder struct {
	writer  io.Writer
	encoder *gojson.Encoder
	count   int
	isArray bool
	pretty  bool
}

// NewStreamingEncoder creates a streaming encoder. With isArray the output
// is a single array closed by Close.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &StreamingEncoder{writer: w, encoder: enc, isArray: isArray}
}

// SetPretty indents every value with indent.
func (se *StreamingEncoder) SetPretty(indent string) {
	se.pretty = indent != ""
	se.encoder.SetIndent("", indent)
}

// Encode writes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.isArray {
		sep := ","
		if se.count == 0 {
			sep = "["
		}
		if _, err := io.WriteString(se.writer, sep); err != nil {
			return err
		}
	}
	se.count++
	return se.encoder.Encode(v)
}

// Count returns the number of values written.
func (se *StreamingEncoder) Count() int { return se.count }

// Close terminates an array. An array with no values is written as [].
func (se *StreamingEncoder) Close() error {
	if !se.isArray {
		return nil
	}
	tail := "]\n"
	if se.count == 0 {
		tail = "[]\n"
	}
	_, err := io.WriteString(se.writer, tail)
	return err
}
