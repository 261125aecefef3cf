// Package checkpoint persists CrossCat models. A checkpoint is a single
// header line naming the codec followed by the compressed JSON snapshot:
//
//	crosscat-checkpoint/zstd
//	<zstd frame of {"version":1,"spec":{...},"latents":{...},"data":{...}}>
//
// The snapshot carries exactly the arguments of xcat.ConstructFromLatents,
// so a loaded model is rebuilt rather than deserialized.
package checkpoint

import (
	"bufio"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crosscat/pkg/compression"
	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/json"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/view"
	"github.com/ajitpratap0/crosscat/pkg/xcat"
)

const (
	// FormatVersion is the snapshot layout written by Encode.
	FormatVersion = 1

	headerPrefix = "crosscat-checkpoint/"
)

// Snapshot is the persisted state of a model.
type Snapshot struct {
	Version    int          `json:"version"`
	GridPoints int          `json:"grid_points,omitempty"`
	Spec       xcat.Spec    `json:"spec"`
	Latents    xcat.Latents `json:"latents"`
	Data       xcat.Data    `json:"data"`
}

// Options controls checkpoint encoding.
type Options struct {
	Compression compression.Algorithm
	Level       compression.Level
}

// DefaultOptions writes zstd at the default level.
func DefaultOptions() Options {
	return Options{Compression: compression.Zstd, Level: compression.Default}
}

// FromModel captures the state of a model.
func FromModel(m *xcat.XCat, opts view.Options) Snapshot {
	spec, latents, data := m.Export()
	return Snapshot{
		Version:    FormatVersion,
		GridPoints: opts.GridPoints,
		Spec:       spec,
		Latents:    latents,
		Data:       data,
	}
}

// Model rebuilds the model described by the snapshot.
func (s Snapshot) Model(rt *gpm.Runtime) (*xcat.XCat, error) {
	m, err := xcat.ConstructFromLatents(s.Spec, s.Latents, s.Data, view.Options{GridPoints: s.GridPoints}, rt)
	if err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "checkpoint does not describe a valid model")
	}
	return m, nil
}

// Encode writes the snapshot to w.
func Encode(w io.Writer, snap Snapshot, opts Options) error {
	if opts.Compression == "" {
		opts.Compression = compression.Zstd
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: opts.Compression, Level: opts.Level})
	if err != nil {
		return err
	}
	if snap.Version == 0 {
		snap.Version = FormatVersion
	}

	body, err := json.MarshalToBuffer(snap)
	if err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "failed to marshal snapshot")
	}
	defer json.PutBuffer(body)

	if _, err := io.WriteString(w, headerPrefix+string(opts.Compression)+"\n"); err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to write checkpoint header")
	}
	if err := comp.CompressStream(w, body); err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to write checkpoint body")
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (Snapshot, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil {
		return Snapshot{}, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "missing checkpoint header")
	}
	header = strings.TrimSuffix(header, "\n")
	codec, ok := strings.CutPrefix(header, headerPrefix)
	if !ok {
		return Snapshot{}, crosscaterrors.Newf(crosscaterrors.ErrorTypeData, "not a checkpoint: header %q", header)
	}
	algo, err := compression.ParseAlgorithm(codec)
	if err != nil {
		return Snapshot{}, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "unknown checkpoint codec")
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: algo, Level: compression.Default})
	if err != nil {
		return Snapshot{}, err
	}

	body := json.GetBuffer()
	defer json.PutBuffer(body)
	if err := comp.DecompressStream(body, br); err != nil {
		return Snapshot{}, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "corrupt checkpoint body").
			WithDetail("codec", codec)
	}

	var snap Snapshot
	if err := json.Unmarshal(body.Bytes(), &snap); err != nil {
		return Snapshot{}, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "failed to parse snapshot")
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, crosscaterrors.Newf(crosscaterrors.ErrorTypeData, "unsupported checkpoint version %d", snap.Version)
	}
	return snap, nil
}

// SaveFile encodes the snapshot into path, replacing any existing file.
func SaveFile(path string, snap Snapshot, opts Options) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to create checkpoint").
			WithDetail("path", path)
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, snap, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to flush checkpoint")
	}
	if err := f.Close(); err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to close checkpoint")
	}

	logger.Get().Debug("checkpoint saved",
		zap.String("path", path),
		zap.String("codec", string(opts.Compression)),
		zap.Int("rows", len(snap.Data)),
		zap.Int("views", len(snap.Spec.Views)))
	return nil
}

// LoadFile decodes the snapshot stored at path.
func LoadFile(path string) (Snapshot, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return Snapshot{}, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to open checkpoint").
			WithDetail("path", path)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, err
	}
	logger.Get().Debug("checkpoint loaded", zap.String("path", path), zap.Int("rows", len(snap.Data)))
	return snap, nil
}
