package entity

import (
	"fmt"
	"slices"
	"strings"
)

// ConsumerID identifies whatever declared requirements or uses file records:
// a browser session, a details panel, an HTTP client.
type ConsumerID string

// FileRequirement is a set of properties a consumer needs on files matching
// the query. Properties are kept sorted and unique.
type FileRequirement struct {
	*FileQuery
	properties []string
}

func NewFileRequirement(query *FileQuery, properties ...string) *FileRequirement {
	if query == nil {
		query = &FileQuery{}
	}

	props := slices.Clone(properties)
	slices.Sort(props)

	return &FileRequirement{
		FileQuery:  query,
		properties: slices.Compact(props),
	}
}

func (r *FileRequirement) Properties() []string {
	return slices.Clone(r.properties)
}

func (r *FileRequirement) Equal(other *FileRequirement) bool {
	if other == nil {
		return false
	}

	return r.FileQuery.Equal(other.FileQuery) && slices.Equal(r.properties, other.properties)
}

func (r *FileRequirement) String() string {
	return fmt.Sprintf("<FileRequirement:%s|properties:%s>", r.FileQuery, strings.Join(r.properties, ","))
}
