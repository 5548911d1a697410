package entity

import (
	"fmt"

	"github.com/jgivc/browsersync/internal/common"
)

const (
	QueryTypeNone QueryType = iota
	QueryTypeFileGRI
	QueryTypeParentID
)

type QueryType int

func (t QueryType) String() string {
	return [...]string{"none", "fileGri", "parentId"}[t]
}

// FileQuery selects a single file, the children of a directory or, with no
// discriminator set, anything.
type FileQuery struct {
	fileGRI  string
	parentID string
}

func NewFileQuery(fileGRI, parentID string) (*FileQuery, error) {
	if fileGRI != "" && parentID != "" {
		return nil, common.ErrInvalidQuery
	}

	return &FileQuery{fileGRI: fileGRI, parentID: parentID}, nil
}

func MustFileQuery(fileGRI, parentID string) *FileQuery {
	q, err := NewFileQuery(fileGRI, parentID)
	if err != nil {
		panic(err)
	}

	return q
}

func FileGRIQuery(gri string) *FileQuery {
	return &FileQuery{fileGRI: gri}
}

func ParentIDQuery(parentID string) *FileQuery {
	return &FileQuery{parentID: parentID}
}

func (q *FileQuery) FileGRI() string {
	return q.fileGRI
}

func (q *FileQuery) ParentID() string {
	return q.parentID
}

func (q *FileQuery) QueryType() QueryType {
	switch {
	case q.fileGRI != "":
		return QueryTypeFileGRI
	case q.parentID != "":
		return QueryTypeParentID
	default:
		return QueryTypeNone
	}
}

func (q *FileQuery) value() string {
	switch q.QueryType() {
	case QueryTypeFileGRI:
		return q.fileGRI
	case QueryTypeParentID:
		return q.parentID
	}

	return ""
}

// Matches is symmetric. A none query matches everything.
func (q *FileQuery) Matches(other *FileQuery) bool {
	if other == nil {
		return false
	}

	qt, ot := q.QueryType(), other.QueryType()
	if qt == QueryTypeNone || ot == QueryTypeNone {
		return true
	}

	return qt == ot && q.value() == other.value()
}

func (q *FileQuery) MatchesFile(file *File) bool {
	if file == nil {
		return false
	}

	switch q.QueryType() {
	case QueryTypeFileGRI:
		return file.GRI == q.fileGRI
	case QueryTypeParentID:
		return file.ParentGRI == q.parentID
	}

	return true
}

func (q *FileQuery) Equal(other *FileQuery) bool {
	if other == nil {
		return false
	}

	return q.fileGRI == other.fileGRI && q.parentID == other.parentID
}

func (q *FileQuery) String() string {
	if q.QueryType() == QueryTypeNone {
		return "<FileQuery:none>"
	}

	return fmt.Sprintf("<FileQuery:%s-%s>", q.QueryType(), q.value())
}
