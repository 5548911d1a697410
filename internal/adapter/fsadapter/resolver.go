package fsadapter

import (
	"fmt"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/entity"
)

const (
	buildIndexThreshold = 5
)

type fileResolver struct {
	files   []*entity.File
	index   map[string]int
	missing []string
}

func newFileResolver(files []*entity.File) *fileResolver {
	return &fileResolver{files: files}
}

func (r *fileResolver) GetFile(fileName string) (*entity.File, error) {
	if len(r.files) > buildIndexThreshold {
		if r.index == nil {
			r.buildIndex()
		}

		if idx, ok := r.index[fileName]; ok {
			return r.files[idx], nil
		}

		return nil, r.notFound(fileName)
	}

	for i := range r.files {
		file := r.files[i]
		if file.Name() == fileName {
			return file, nil
		}
	}

	return nil, r.notFound(fileName)
}

func (r *fileResolver) notFound(fileName string) error {
	r.missing = append(r.missing, fileName)

	return fmt.Errorf("cannot find file %s: %w", fileName, common.ErrFileNotFoundError)
}

// Missing returns names that could not be resolved, in lookup order.
func (r *fileResolver) Missing() []string {
	return r.missing
}

func (r *fileResolver) buildIndex() {
	index := make(map[string]int)
	for i, file := range r.files {
		index[file.Name()] = i
	}

	r.index = index
}

func (r *fileResolver) GetFiles() []*entity.File {
	return r.files
}
