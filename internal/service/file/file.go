package file

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jgivc/browsersync/internal/config"
	"github.com/jgivc/browsersync/internal/entity"
)

const (
	serviceName = "file"
)

type Backend interface {
	GetFile(ctx context.Context, gri string, attrs []string) (*entity.File, error)
	ListChildren(ctx context.Context, dirGRI string, attrs []string) ([]*entity.File, error)
}

type RecordRepository interface {
	Save(ctx context.Context, files ...*entity.File) error
}

type RequirementFinder interface {
	FindAttrsRequirement(queries ...*entity.FileQuery) []string
}

// FileService fetches file records with exactly the attributes some
// registered consumer needs.
type FileService struct {
	backend   Backend
	repo      RecordRepository
	reqs      RequirementFinder
	baseAttrs []string
	fullAttrs []string
	fullGRIs  map[string]struct{}
	log       *slog.Logger
}

func NewFileService(backend Backend, repo RecordRepository, reqs RequirementFinder, cfg *config.FetchConfig, log *slog.Logger) *FileService {
	fullGRIs := make(map[string]struct{}, len(cfg.FullAttrsGRIs))
	for _, gri := range cfg.FullAttrsGRIs {
		fullGRIs[gri] = struct{}{}
	}

	return &FileService{
		backend:   backend,
		repo:      repo,
		reqs:      reqs,
		baseAttrs: cfg.BaseAttrs,
		fullAttrs: sortedUnion(cfg.FullAttrs),
		fullGRIs:  fullGRIs,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Attrs returns the attribute list for fetching gri. GRIs from the
// full_attrs_gris list bypass the registry: some backends fail on partial
// attribute requests for special files such as a fake space root.
func (s *FileService) Attrs(gri, parentGRI string) []string {
	if _, full := s.fullGRIs[gri]; full {
		return slices.Clone(s.fullAttrs)
	}

	queries := []*entity.FileQuery{entity.FileGRIQuery(gri)}
	if parentGRI != "" {
		queries = append(queries, entity.ParentIDQuery(parentGRI))
	}

	return sortedUnion(s.baseAttrs, s.reqs.FindAttrsRequirement(queries...))
}

// ListAttrs returns the attribute list for fetching children of dirGRI.
func (s *FileService) ListAttrs(dirGRI string) []string {
	return sortedUnion(s.baseAttrs, s.reqs.FindAttrsRequirement(entity.ParentIDQuery(dirGRI)))
}

func (s *FileService) GetFile(ctx context.Context, gri, parentGRI string) (*entity.File, error) {
	attrs := s.Attrs(gri, parentGRI)

	file, err := s.backend.GetFile(ctx, gri, attrs)
	if err != nil {
		s.log.Error("Cannot get file", slog.String("gri", gri), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get file %s: %w", gri, err)
	}

	if err := s.repo.Save(ctx, file); err != nil {
		s.log.Error("Cannot save file record", slog.String("gri", gri), slog.Any("error", err))

		return nil, fmt.Errorf("cannot save file %s: %w", gri, err)
	}

	s.log.Debug("Get file", slog.String("gri", gri), slog.Any("attrs", attrs))

	return file, nil
}

func (s *FileService) ListChildren(ctx context.Context, dirGRI string) ([]*entity.File, error) {
	attrs := s.ListAttrs(dirGRI)

	files, err := s.backend.ListChildren(ctx, dirGRI, attrs)
	if err != nil {
		s.log.Error("Cannot list children", slog.String("dir_gri", dirGRI), slog.Any("error", err))

		return nil, fmt.Errorf("cannot list dir %s: %w", dirGRI, err)
	}

	if err := s.repo.Save(ctx, files...); err != nil {
		s.log.Error("Cannot save file records", slog.String("dir_gri", dirGRI), slog.Any("error", err))

		return nil, fmt.Errorf("cannot save children of %s: %w", dirGRI, err)
	}

	return files, nil
}

func sortedUnion(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		out = append(out, list...)
	}
	slices.Sort(out)

	return slices.Compact(out)
}
