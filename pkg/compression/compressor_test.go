package compression

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

func latentsLike(rows int) []byte {
	var b strings.Builder
	b.WriteString(`{"y":{`)
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `"row-%d":"category-%d"`, i, i%7)
	}
	b.WriteString("}}")
	return []byte(b.String())
}

func TestRoundTrip(t *testing.T) {
	original := latentsLike(500)
	for _, algo := range Algorithms {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(fmt.Sprintf("%s/%d", algo, level), func(t *testing.T) {
				comp, err := NewCompressor(&Config{Algorithm: algo, Level: level})
				require.NoError(t, err)
				assert.Equal(t, algo, comp.Algorithm())
				assert.Equal(t, level, comp.Level())

				compressed, err := comp.Compress(original)
				require.NoError(t, err)
				if algo != None {
					assert.Less(t, len(compressed), len(original))
				}
				decompressed, err := comp.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, decompressed)

				var packed, unpacked bytes.Buffer
				require.NoError(t, comp.CompressStream(&packed, bytes.NewReader(original)))
				require.NoError(t, comp.DecompressStream(&unpacked, &packed))
				assert.Equal(t, original, unpacked.Bytes())
			})
		}
	}
}

func TestEmptyInput(t *testing.T) {
	for _, algo := range Algorithms {
		comp, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		require.NoError(t, err)
		var packed, unpacked bytes.Buffer
		require.NoError(t, comp.CompressStream(&packed, bytes.NewReader(nil)), algo)
		require.NoError(t, comp.DecompressStream(&unpacked, &packed), algo)
		assert.Zero(t, unpacked.Len(), algo)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("lz4")
	require.NoError(t, err)
	assert.Equal(t, LZ4, a)

	_, err = ParseAlgorithm("brotli")
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeConfig))

	_, err = NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)

	comp, err := NewCompressor(nil)
	require.NoError(t, err)
	assert.Equal(t, Zstd, comp.Algorithm())
}

func TestDecompress_Corrupt(t *testing.T) {
	for _, algo := range []Algorithm{Gzip, Snappy, Zstd, S2, LZ4} {
		comp, err := NewCompressor(&Config{Algorithm: algo})
		require.NoError(t, err)
		_, err = comp.Decompress([]byte("definitely not compressed"))
		assert.Error(t, err, algo)
	}
}

func BenchmarkCompress(b *testing.B) {
	data := latentsLike(10000)
	for _, algo := range Algorithms {
		comp, err := NewCompressor(&Config{Algorithm: algo, Level: Default})
		if err != nil {
			b.Fatal(err)
		}
		b.Run(string(algo), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if _, err := comp.Compress(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
