package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gltf-export-service/internal/config"
	"gltf-export-service/internal/decoder"
	"gltf-export-service/internal/extraction"
	"gltf-export-service/internal/gltfexport"
	"gltf-export-service/internal/materials"
	"gltf-export-service/internal/metrics"
	"gltf-export-service/internal/models"
	"gltf-export-service/internal/pipeline"
	"gltf-export-service/internal/repository"
)

// ErrInvalidRequest marks request problems the caller can fix: unknown
// options, unsupported uploads and archives without a single document.
var ErrInvalidRequest = errors.New("invalid export request")

// BlobStore keeps encoded exports. storage.MinioStore implements it.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// ExportRequest holds per-request overrides. Nil or empty fields fall back
// to the configured defaults.
type ExportRequest struct {
	ExportSelectedOnly *bool
	Predicate          string
	Format             string
}

// ExportService converts uploads, stores the results and serves downloads.
type ExportService struct {
	Repo      repository.ExportRepository
	Store     BlobStore
	Cache     *CacheStrategy // optional
	Converter *pipeline.Converter
	Decoders  *decoder.Registry
	Defaults  config.ExportConfig
	Log       *zap.Logger
}

// NewExportService wires the service. cache may be nil.
func NewExportService(repo repository.ExportRepository, store BlobStore, cache *CacheStrategy, conv *pipeline.Converter,
	decoders *decoder.Registry, defaults config.ExportConfig, log *zap.Logger) *ExportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportService{
		Repo:      repo,
		Store:     store,
		Cache:     cache,
		Converter: conv,
		Decoders:  decoders,
		Defaults:  defaults,
		Log:       log,
	}
}

// Options merges req over the configured defaults.
func (s *ExportService) Options(req ExportRequest) (pipeline.Options, error) {
	selectedOnly := s.Defaults.ExportSelectedOnly
	if req.ExportSelectedOnly != nil {
		selectedOnly = *req.ExportSelectedOnly
	}
	predicate := s.Defaults.SelectionPredicate
	if req.Predicate != "" {
		predicate = req.Predicate
	}
	formatName := s.Defaults.Format
	if req.Format != "" {
		formatName = req.Format
	}

	policy, err := materials.NewPolicy(selectedOnly, predicate)
	if err != nil {
		return pipeline.Options{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	format, err := gltfexport.ParseFormat(formatName)
	if err != nil {
		return pipeline.Options{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	return pipeline.Options{Policy: policy, Format: format, Generator: s.Defaults.Generator}, nil
}

// Convert runs an upload through the pipeline without storing the result.
// Archives are searched for a single decodable document.
func (s *ExportService) Convert(ctx context.Context, filename string, src io.Reader, req ExportRequest) (*pipeline.Result, error) {
	opts, err := s.Options(req)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(filename)
	if !extraction.IsArchive(name) && !s.Decoders.Supports(name) {
		return nil, errors.Wrapf(ErrInvalidRequest, "unsupported file format %q, expected one of %s or an archive",
			filepath.Ext(name), strings.Join(s.Decoders.Extensions(), ", "))
	}

	inputPath, err := stageUpload(name, src)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputPath)

	docPath := inputPath
	if extraction.IsArchive(name) {
		path, cleanup, err := extraction.FindDocument(ctx, inputPath, s.Decoders.Supports)
		defer cleanup()
		if err != nil {
			return nil, errors.Wrap(ErrInvalidRequest, err.Error())
		}
		docPath = path
	}

	return s.Converter.ConvertFile(ctx, s.Decoders, docPath, opts)
}

func stageUpload(name string, src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", errors.Wrap(err, "could not create temporary file")
	}
	_, err = io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write uploaded file")
	}
	return tmp.Name(), nil
}

// CreateExport converts an upload, stores the output and records its
// metadata. The output is also placed in the cache.
func (s *ExportService) CreateExport(ctx context.Context, filename string, src io.Reader, req ExportRequest) (*models.Export, *pipeline.Result, error) {
	result, err := s.Convert(ctx, filename, src, req)
	if err != nil {
		return nil, nil, err
	}

	id := uuid.New()
	key := id.String() + result.Format.Extension()
	result.Timings.ExportID = id.String()

	result.Timings.Start("upload")
	err = s.Store.Put(ctx, key, result.Data, result.ContentType)
	result.Timings.End("upload")
	if err != nil {
		return nil, nil, &pipeline.StageError{Stage: pipeline.StageWrite, ObjectIndex: -1, Err: err}
	}

	export := &models.Export{
		ID:                 id,
		OriginalFilename:   filepath.Base(filename),
		Format:             string(result.Format),
		ContentType:        result.ContentType,
		Size:               int64(len(result.Data)),
		StorageKey:         key,
		NodeCount:          result.Nodes,
		SkippedCount:       len(result.Warnings),
		ExportSelectedOnly: s.selectedOnly(req),
		CreatedAt:          time.Now(),
	}
	if err := s.Repo.Create(ctx, export); err != nil {
		if rmErr := s.Store.Remove(ctx, key); rmErr != nil {
			s.Log.Warn("failed to remove orphaned export", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, nil, errors.Wrap(err, "failed to save metadata to database")
	}

	if s.Cache != nil {
		if _, err := s.Cache.Store(id, result.Data); err != nil {
			s.Log.Warn("failed to cache export", zap.Stringer("export_id", id), zap.Error(err))
		}
	}

	s.Log.Info("export stored",
		zap.Stringer("export_id", id),
		zap.String("filename", export.OriginalFilename),
		zap.Int64("bytes", export.Size))
	return export, result, nil
}

func (s *ExportService) selectedOnly(req ExportRequest) bool {
	if req.ExportSelectedOnly != nil {
		return *req.ExportSelectedOnly
	}
	return s.Defaults.ExportSelectedOnly
}

// GetExport returns gorm.ErrRecordNotFound for unknown IDs.
func (s *ExportService) GetExport(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *ExportService) ListExports(ctx context.Context, limit, offset int) ([]models.Export, error) {
	return s.Repo.List(ctx, limit, offset)
}

// DeleteExport removes the stored output, its metadata and any cached copy.
func (s *ExportService) DeleteExport(ctx context.Context, id uuid.UUID) error {
	export, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Remove(ctx, export.StorageKey); err != nil {
		return errors.Wrap(err, "failed to delete from storage")
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "failed to delete metadata")
	}
	if s.Cache != nil {
		if err := s.Cache.InvalidateObject(id); err != nil {
			s.Log.Warn("failed to invalidate cached export", zap.Stringer("export_id", id), zap.Error(err))
		}
	}
	return nil
}

// Download returns the export metadata and its encoded output, from the cache
// when possible and from object storage otherwise.
func (s *ExportService) Download(ctx context.Context, id uuid.UUID, timings *metrics.ConversionTimings) (*models.Export, []byte, error) {
	timings.Start("db_lookup")
	export, err := s.Repo.GetByID(ctx, id)
	timings.End("db_lookup")
	if err != nil {
		return nil, nil, err
	}

	if s.Cache != nil {
		if data, layer, ok := s.Cache.Lookup(id, timings); ok {
			s.Log.Debug("cache hit", zap.Stringer("export_id", id), zap.String("layer", layer))
			return export, data, nil
		}
	}

	timings.Start("storage")
	data, err := s.Store.Get(ctx, export.StorageKey)
	timings.End("storage")
	if err != nil {
		return nil, nil, err
	}

	if s.Cache != nil {
		if _, err := s.Cache.Store(id, data); err != nil {
			s.Log.Warn("failed to cache export", zap.Stringer("export_id", id), zap.Error(err))
		}
	}
	return export, data, nil
}

// CacheStats returns nil when no cache is configured.
func (s *ExportService) CacheStats() *MultiLayerCacheStats {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.GetStatistics()
}

// ClearCache empties every cache layer.
func (s *ExportService) ClearCache() error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.ClearAll()
}
