// Package pipeline runs one document through assembly, serialization and
// encoding, and is shared by the CLI and the HTTP service.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gltf-export-service/internal/decoder"
	"gltf-export-service/internal/geometry"
	"gltf-export-service/internal/gltfexport"
	"gltf-export-service/internal/materials"
	"gltf-export-service/internal/metrics"
	"gltf-export-service/internal/models"
	"gltf-export-service/internal/scene"
)

type Stage string

const (
	StageDecode    Stage = "decode"
	StageAssemble  Stage = "assemble"
	StageSerialize Stage = "serialize"
	StageEncode    Stage = "encode"
	StageWrite     Stage = "write"
)

// StageError is the single terminal error of a conversion. ObjectIndex is -1
// when the failure is not tied to one source object.
type StageError struct {
	Stage       Stage
	ObjectIndex int
	Err         error
}

func (e *StageError) Error() string {
	if e.ObjectIndex >= 0 {
		return fmt.Sprintf("%s failed at object %d: %v", e.Stage, e.ObjectIndex, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Options struct {
	Policy    materials.Policy
	Format    gltfexport.Format
	Generator string
}

type Result struct {
	Data        []byte
	Format      gltfexport.Format
	ContentType string
	Nodes       int
	Warnings    []scene.Warning
	Timings     *metrics.ConversionTimings
}

// Converter holds the collaborators of a conversion. It keeps no state between
// calls and is safe for concurrent use when its collaborators are.
type Converter struct {
	Tessellator geometry.Tessellator
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

func NewConverter(tess geometry.Tessellator, m *metrics.Metrics, log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{Tessellator: tess, Metrics: m, Log: log}
}

// Convert assembles, serializes and encodes doc. Skipped objects are reported
// as warnings on a successful result.
func (c *Converter) Convert(doc *models.SourceDocument, opts Options) (*Result, error) {
	return c.convert(doc, opts, metrics.NewConversionTimings(""))
}

// ConvertFile decodes path with dec and converts the result.
func (c *Converter) ConvertFile(ctx context.Context, dec decoder.Decoder, path string, opts Options) (*Result, error) {
	timings := metrics.NewConversionTimings("")
	timings.Start(string(StageDecode))
	doc, err := dec.Decode(ctx, path)
	timings.End(string(StageDecode))
	if err != nil {
		c.record("error", opts.Format, timings, 0)
		return nil, &StageError{Stage: StageDecode, ObjectIndex: -1, Err: err}
	}
	return c.convert(doc, opts, timings)
}

func (c *Converter) convert(doc *models.SourceDocument, opts Options, timings *metrics.ConversionTimings) (*Result, error) {
	if c.Metrics != nil {
		defer c.Metrics.ConversionStarted()()
	}
	format := opts.Format
	if format == "" {
		format = gltfexport.FormatGLTF
	}

	timings.Start(string(StageAssemble))
	sc, warnings, err := scene.NewAssembler(c.Tessellator, c.Log).Assemble(doc, opts.Policy)
	timings.End(string(StageAssemble))
	if err != nil {
		c.record("error", format, timings, 0)
		index := -1
		var objErr *scene.ObjectError
		if errors.As(err, &objErr) {
			index = objErr.Index
		}
		return nil, &StageError{Stage: StageAssemble, ObjectIndex: index, Err: err}
	}
	if c.Metrics != nil {
		for _, w := range warnings {
			c.Metrics.RecordSkipped(w.Kind)
		}
	}

	timings.Start(string(StageSerialize))
	out, err := gltfexport.Serialize(sc, gltfexport.Options{Generator: opts.Generator})
	timings.End(string(StageSerialize))
	if err != nil {
		c.record("error", format, timings, 0)
		index := -1
		var serr *gltfexport.SerializationError
		if errors.As(err, &serr) && serr.Node >= 0 && serr.Node < len(sc.Nodes) {
			index = sc.Nodes[serr.Node].SourceIndex
		}
		return nil, &StageError{Stage: StageSerialize, ObjectIndex: index, Err: err}
	}

	timings.Start(string(StageEncode))
	var buf bytes.Buffer
	err = gltfexport.Encode(&buf, out, format)
	timings.End(string(StageEncode))
	if err != nil {
		c.record("error", format, timings, 0)
		return nil, &StageError{Stage: StageEncode, ObjectIndex: -1, Err: err}
	}

	timings.SetResult(int64(buf.Len()), len(sc.Nodes), len(warnings))
	c.record("success", format, timings, buf.Len())

	c.Log.Info("conversion complete",
		zap.Int("objects", len(doc.Objects)),
		zap.Int("nodes", len(sc.Nodes)),
		zap.Int("skipped", len(warnings)),
		zap.String("format", string(format)),
		zap.Int("bytes", buf.Len()))

	return &Result{
		Data:        buf.Bytes(),
		Format:      format,
		ContentType: format.ContentType(),
		Nodes:       len(sc.Nodes),
		Warnings:    warnings,
		Timings:     timings,
	}, nil
}

func (c *Converter) record(status string, format gltfexport.Format, timings *metrics.ConversionTimings, size int) {
	timings.Finalize()
	if c.Metrics != nil {
		c.Metrics.RecordConversion(status, string(format), timings.TotalLatencyMs, size)
	}
}

// WriteFile writes the encoded output to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &StageError{Stage: StageWrite, ObjectIndex: -1, Err: errors.Wrap(err, "failed to create output directory")}
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &StageError{Stage: StageWrite, ObjectIndex: -1, Err: errors.Wrap(err, "failed to write output")}
	}
	return nil
}

// OutputPath names the output after the input file with the format's extension.
func OutputPath(input string, format gltfexport.Format) string {
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + format.Extension()
}
