// Package compression provides the codecs used to store model checkpoints.
// Every codec supports in-memory and streaming operation.
//
// # Algorithm Selection
//
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: very fast, decent ratio
//   - Zstd: best ratio at good speed
//   - Gzip/Deflate: widest compatibility
//
// # Basic Usage
//
//	comp, err := compression.NewCompressor(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Better,
//	})
//	compressed, err := comp.Compress(data)
//	original, err := comp.Decompress(compressed)
package compression

import (
	"bytes"
	"io"
	"slices"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

// Algorithm names a compression codec.
type Algorithm string

const (
	// None stores data as is
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Algorithms lists every supported codec.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// ParseAlgorithm validates a codec name.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(name)
	if !slices.Contains(Algorithms, a) {
		return "", crosscaterrors.Newf(crosscaterrors.ErrorTypeConfig, "unsupported compression algorithm: %s", name).
			WithDetail("supported", Algorithms)
	}
	return a, nil
}

// Level trades compression speed for ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns the compressed bytes.
	// The input data is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data and returns the original bytes.
	// The input data is not modified.
	Decompress(data []byte) ([]byte, error)

	// CompressStream compresses from reader to writer.
	CompressStream(dst io.Writer, src io.Reader) error

	// DecompressStream decompresses from reader to writer.
	DecompressStream(dst io.Writer, src io.Reader) error

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm // Compression algorithm to use
	Level     Level     // Compression level
}

// DefaultConfig returns the checkpoint default: zstd at the default level.
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Zstd,
		Level:     Default,
	}
}

// NewCompressor creates a compressor. A nil config selects DefaultConfig.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	base := baseCompressor{algorithm: config.Algorithm, level: config.Level}

	switch config.Algorithm {
	case None:
		return &noneCompressor{baseCompressor: base}, nil
	case Gzip:
		return newGzipCompressor(base), nil
	case Snappy:
		return &snappyCompressor{baseCompressor: base}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor: base, compressionLevel: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return newZstdCompressor(base), nil
	case S2:
		return &s2Compressor{baseCompressor: base}, nil
	case Deflate:
		return &deflateCompressor{baseCompressor: base, flateLevel: mapDeflateLevel(config.Level)}, nil
	default:
		_, err := ParseAlgorithm(string(config.Algorithm))
		return nil, err
	}
}

// streamBytes runs a streaming operation over an in-memory input.
func streamBytes(op func(io.Writer, io.Reader) error, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := op(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

// Algorithm returns the compression algorithm
func (bc *baseCompressor) Algorithm() Algorithm {
	return bc.algorithm
}

// Level returns the compression level
func (bc *baseCompressor) Level() Level {
	return bc.level
}

// None compressor (no compression)
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
	writerPool sync.Pool
}

func newGzipCompressor(base baseCompressor) *gzipCompressor {
	level := mapGzipLevel(base.level)
	gc := &gzipCompressor{baseCompressor: base}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, level)
		return w
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	return streamBytes(gc.CompressStream, data)
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	return streamBytes(gc.DecompressStream, data)
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := gc.writerPool.Get().(*gzip.Writer)
	defer gc.writerPool.Put(w)

	w.Reset(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = io.Copy(dst, r)
	return err
}

// Snappy compressor
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (sc *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := snappy.NewBufferedWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, snappy.NewReader(src))
	return err
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
	compressionLevel lz4.CompressionLevel
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	return streamBytes(lc.CompressStream, data)
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return streamBytes(lc.DecompressStream, data)
}

func (lc *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(lc.compressionLevel)); err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (lc *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, lz4.NewReader(src))
	return err
}

// Zstd compressor
type zstdCompressor struct {
	baseCompressor
	encoderPool sync.Pool
	decoderPool sync.Pool
}

func newZstdCompressor(base baseCompressor) *zstdCompressor {
	level := mapZstdLevel(base.level)
	zc := &zstdCompressor{baseCompressor: base}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		return enc
	}
	zc.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	return zc
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	return enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	return dec.DecodeAll(data, nil)
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	enc := zc.encoderPool.Get().(*zstd.Encoder)
	defer zc.encoderPool.Put(enc)

	enc.Reset(dst)
	if _, err := io.Copy(enc, src); err != nil {
		return err
	}
	return enc.Close()
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	dec := zc.decoderPool.Get().(*zstd.Decoder)
	defer zc.decoderPool.Put(dec)

	if err := dec.Reset(src); err != nil {
		return err
	}
	_, err := io.Copy(dst, dec)
	return err
}

// S2 compressor (Snappy-compatible but better compression)
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (sc *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (sc *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, s2.NewReader(src))
	return err
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
	flateLevel int
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	return streamBytes(dc.CompressStream, data)
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	return streamBytes(dc.DecompressStream, data)
}

func (dc *deflateCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	w, err := flate.NewWriter(dst, dc.flateLevel)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

func (dc *deflateCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := flate.NewReader(src)
	defer r.Close()

	_, err := io.Copy(dst, r)
	return err
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
