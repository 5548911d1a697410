package fsadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jgivc/browsersync/internal/adapter/mdadapter"
	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/config"
	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/util"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
	"gopkg.in/yaml.v2"
)

const (
	maxFiles = 1000

	recallInfoSuffix  = ".yml"
	recallStateSuffix = ".state.yml"
)

var (
	// Attributes needed to resolve [[...]] links in archive descriptions.
	linkAttrs = []string{entity.AttrName, entity.AttrType}
)

type Frontmatter struct {
	State        string    `yaml:"state"`
	DatasetID    string    `yaml:"dataset_id"`
	RootDir      string    `yaml:"root_dir"`
	CreationTime time.Time `yaml:"creation_time"`
}

// fsAdapter serves file, archive and recall records from a directory tree.
// It stands in for the remote graph API.
type fsAdapter struct {
	fs        afero.Fs
	cfg       *config.BackendConfig
	skipFiles map[string]struct{}
	md        goldmark.Markdown
	limit     int

	log *slog.Logger
}

func NewFSAdapter(cfg *config.BackendConfig, log *slog.Logger) (*fsAdapter, error) {
	if _, err := os.Stat(cfg.WorkDir); err != nil {
		return nil, fmt.Errorf("cannot open work dir: %w", err)
	}

	return NewFSAdapterWithFS(afero.NewBasePathFs(afero.NewOsFs(), cfg.WorkDir), cfg, log)
}

// NewFSAdapterWithFS expects fs to be rooted at the space root.
func NewFSAdapterWithFS(fs afero.Fs, cfg *config.BackendConfig, log *slog.Logger) (*fsAdapter, error) {
	skipFilesMap := make(map[string]struct{})
	for _, file := range cfg.SkipFiles {
		skipFilesMap[file] = struct{}{}
	}

	limit := cfg.ListLimit
	if limit <= 0 {
		limit = maxFiles
	}

	ext, err := mdadapter.NewFilesExtension("")
	if err != nil {
		return nil, fmt.Errorf("cannot create files extension: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
			ext,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &fsAdapter{
		fs:        fs,
		cfg:       cfg,
		skipFiles: skipFilesMap,
		md:        md,
		limit:     limit,
		log:       log.With(slog.String("item", "FSAdapter")),
	}, nil
}

func (a *fsAdapter) GetFile(ctx context.Context, gri string, attrs []string) (*entity.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := util.PathFromGRI(gri)
	if err != nil {
		return nil, err
	}

	info, err := a.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot stat %s: %w", p, common.ErrFileNotFoundError)
		}

		return nil, fmt.Errorf("cannot stat %s: %w", p, err)
	}

	return a.toFile(p, info, attrs), nil
}

func (a *fsAdapter) ListChildren(ctx context.Context, dirGRI string, attrs []string) ([]*entity.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := util.PathFromGRI(dirGRI)
	if err != nil {
		return nil, err
	}

	return a.listDir(p, attrs)
}

func (a *fsAdapter) listDir(dir string, attrs []string) ([]*entity.File, error) {
	info, err := a.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot stat %s: %w", dir, common.ErrFileNotFoundError)
		}

		return nil, fmt.Errorf("cannot stat %s: %w", dir, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("cannot list %s: %w", dir, common.ErrNotADirectoryError)
	}

	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read dir %s: %w", dir, err)
	}

	files := make([]*entity.File, 0, len(entries))
	for _, entry := range entries {
		if a.skip(entry.Name()) {
			continue
		}

		files = append(files, a.toFile(path.Join(dir, entry.Name()), entry, attrs))

		if len(files) >= a.limit {
			a.log.Warn("Too many files, list truncated", slog.String("dir", dir), slog.Int("limit", a.limit))

			break
		}
	}

	return files, nil
}

func (a *fsAdapter) skip(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}

	_, exists := a.skipFiles[name]

	return exists
}

// toFile fills only the requested attributes. The emulation has no separate
// ctime and atime, both are reported as mtime.
func (a *fsAdapter) toFile(p string, info fs.FileInfo, attrs []string) *entity.File {
	id := util.FileIDFromPath(p)
	file := &entity.File{
		GRI:        util.FileGRI(id),
		Attributes: make(map[string]string, len(attrs)),
	}

	if p != "/" {
		file.ParentGRI = util.GRIFromPath(path.Dir(p))
	}

	mtime := strconv.FormatInt(info.ModTime().Unix(), 10)
	for _, attr := range attrs {
		var value string

		switch attr {
		case entity.AttrFileID:
			value = id
		case entity.AttrName, entity.AttrIndex:
			value = path.Base(p)
		case entity.AttrType:
			value = fileType(info)
		case entity.AttrParentID:
			value = file.ParentGRI
		case entity.AttrConflictingName:
			value = ""
		case entity.AttrSize:
			value = strconv.FormatInt(info.Size(), 10)
		case entity.AttrMtime, entity.AttrCtime, entity.AttrAtime:
			value = mtime
		case entity.AttrPosixPermissions:
			value = strconv.FormatUint(uint64(info.Mode().Perm()), 8)
		case entity.AttrRecallRootID:
			if a.fileExists(a.recallPath(id, recallInfoSuffix)) {
				value = file.GRI
			}
		case "hardlinkCount":
			value = "1"
		case "owner":
			value = ""
		default:
			continue
		}

		file.Attributes[attr] = value
	}

	return file
}

func fileType(info fs.FileInfo) string {
	switch {
	case info.IsDir():
		return entity.FileTypeDir
	case info.Mode()&fs.ModeSymlink != 0:
		return entity.FileTypeSymlink
	}

	return entity.FileTypeRegular
}

func (a *fsAdapter) GetArchive(ctx context.Context, id string) (*entity.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid archive id %q: %w", id, common.ErrArchiveNotFoundError)
	}

	descPath := path.Join("/", a.cfg.ArchivesDir, id, a.cfg.DescFile)
	src, err := afero.ReadFile(a.fs, descPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("cannot read %s: %w", descPath, common.ErrArchiveNotFoundError)
		}

		return nil, fmt.Errorf("cannot read %s: %w", descPath, err)
	}

	var fm Frontmatter
	if err := a.decodeFrontmatter(src, &fm); err != nil {
		return nil, err
	}

	archive := &entity.Archive{
		ID:           id,
		State:        entity.ArchiveState(fm.State),
		DatasetID:    fm.DatasetID,
		CreationTime: fm.CreationTime,
	}

	var rootFiles []*entity.File
	if fm.RootDir != "" {
		archive.RootDirGRI = util.GRIFromPath(fm.RootDir)

		rootFiles, err = a.listDir(path.Clean("/"+fm.RootDir), linkAttrs)
		if err != nil {
			a.log.Warn("Cannot list archive root", slog.String("archive_id", id), slog.Any("error", err))
		}
	}

	resolver := newFileResolver(rootFiles)
	pc := parser.NewContext()
	pc.Set(mdadapter.FileResolverKey, resolver)

	var buf bytes.Buffer
	if err := a.md.Convert(src, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("cannot convert archive %s description: %w", id, err)
	}

	if missing := resolver.Missing(); len(missing) > 0 {
		a.log.Warn("Unresolved file links in archive description",
			slog.String("archive_id", id), slog.Any("files", missing))
	}

	archive.Description = buf.String()
	archive.DescriptionHash = util.GetIDFromString(&archive.Description)

	return archive, nil
}

func (a *fsAdapter) decodeFrontmatter(src []byte, fm *Frontmatter) error {
	pc := parser.NewContext()
	a.md.Parser().Parse(text.NewReader(src), parser.WithContext(pc))

	data := frontmatter.Get(pc)
	if data == nil {
		return nil
	}

	if err := data.Decode(fm); err != nil {
		return fmt.Errorf("cannot decode frontmatter: %w", err)
	}

	return nil
}

func (a *fsAdapter) GetRecallInfo(ctx context.Context, gri string) (*entity.RecallInfo, error) {
	var info entity.RecallInfo
	if err := a.readRecallFile(ctx, gri, recallInfoSuffix, &info, common.ErrRecallNotFoundError); err != nil {
		return nil, err
	}

	info.RecallRootGRI = gri

	return &info, nil
}

func (a *fsAdapter) GetRecallState(ctx context.Context, gri string) (*entity.RecallState, error) {
	var state entity.RecallState
	if err := a.readRecallFile(ctx, gri, recallStateSuffix, &state, common.ErrRecallStateUnavailable); err != nil {
		return nil, err
	}

	return &state, nil
}

func (a *fsAdapter) readRecallFile(ctx context.Context, gri, suffix string, out any, notFound error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := util.FileIDFromGRI(gri)
	if err != nil {
		return err
	}

	p := a.recallPath(id, suffix)
	data, err := afero.ReadFile(a.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot read %s: %w", p, notFound)
		}

		return fmt.Errorf("cannot read %s: %w", p, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot unmarshal %s: %w", p, err)
	}

	return nil
}

func (a *fsAdapter) recallPath(id, suffix string) string {
	return path.Join("/", a.cfg.RecallDir, id+suffix)
}

func (a *fsAdapter) fileExists(p string) bool {
	_, err := a.fs.Stat(p)

	return err == nil
}
