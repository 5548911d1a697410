package entity

import (
	"testing"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/stretchr/testify/require"
)

func TestNewFileQuery(t *testing.T) {
	_, err := NewFileQuery("file.x.instance:private", "dir")
	require.ErrorIs(t, err, common.ErrInvalidQuery)

	require.Panics(t, func() { MustFileQuery("a", "b") })

	testCases := []struct {
		name     string
		fileGRI  string
		parentID string
		want     QueryType
	}{
		{name: "fileGri", fileGRI: "X", want: QueryTypeFileGRI},
		{name: "parentId", parentID: "Y", want: QueryTypeParentID},
		{name: "none", want: QueryTypeNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := NewFileQuery(tc.fileGRI, tc.parentID)
			require.NoError(t, err)
			require.Equal(t, tc.want, q.QueryType())
		})
	}
}

func TestFileQueryMatches(t *testing.T) {
	x := FileGRIQuery("X")
	y := ParentIDQuery("Y")
	none := MustFileQuery("", "")

	testCases := []struct {
		name string
		a, b *FileQuery
		want bool
	}{
		{name: "same fileGri", a: x, b: FileGRIQuery("X"), want: true},
		{name: "other fileGri", a: x, b: FileGRIQuery("Z"), want: false},
		{name: "same parentId", a: y, b: ParentIDQuery("Y"), want: true},
		{name: "different types same value", a: FileGRIQuery("Y"), b: y, want: false},
		{name: "none left", a: none, b: x, want: true},
		{name: "none right", a: y, b: none, want: true},
		{name: "nil", a: x, b: nil, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.a.Matches(tc.b))
			if tc.b != nil {
				require.Equal(t, tc.want, tc.b.Matches(tc.a), "matches must be symmetric")
			}
		})
	}
}

func TestFileQueryMatchesFile(t *testing.T) {
	file := &File{GRI: "X", ParentGRI: "Y"}

	require.True(t, FileGRIQuery("X").MatchesFile(file))
	require.False(t, FileGRIQuery("Y").MatchesFile(file))
	require.True(t, ParentIDQuery("Y").MatchesFile(file))
	require.False(t, ParentIDQuery("X").MatchesFile(file))
	require.True(t, MustFileQuery("", "").MatchesFile(file))
}

func TestFileRequirementEquality(t *testing.T) {
	r1 := NewFileRequirement(FileGRIQuery("X"), "type", "name", "conflictingName")
	r2 := NewFileRequirement(FileGRIQuery("X"), "name", "conflictingName", "type")

	require.True(t, r1.Equal(r2))
	require.Equal(t, r1.String(), r2.String())
	require.Equal(t, "<FileRequirement:<FileQuery:fileGri-X>|properties:conflictingName,name,type>", r1.String())

	require.False(t, r1.Equal(NewFileRequirement(ParentIDQuery("X"), "type", "name", "conflictingName")))
	require.False(t, r1.Equal(NewFileRequirement(FileGRIQuery("X"), "type", "name")))
}

func TestFileRequirementDedup(t *testing.T) {
	r := NewFileRequirement(nil, "size", "name", "size")

	require.Equal(t, []string{"name", "size"}, r.Properties())
	require.Equal(t, QueryTypeNone, r.QueryType())
	require.Equal(t, "<FileRequirement:<FileQuery:none>|properties:name,size>", r.String())
}

func TestArchiveState(t *testing.T) {
	require.True(t, ArchiveStateBuilding.IsTransient())
	require.True(t, ArchiveStateDeleting.IsDestroying())
	require.False(t, ArchiveStatePreserved.IsTransient())
}

func TestRecallStateAllFilesProcessed(t *testing.T) {
	info := &RecallInfo{TotalFileCount: 10}

	require.False(t, (&RecallState{FilesCopied: 5}).AllFilesProcessed(info))
	require.True(t, (&RecallState{FilesCopied: 8, FilesFailed: 2}).AllFilesProcessed(info))
	require.False(t, (&RecallState{FilesCopied: 1}).AllFilesProcessed(&RecallInfo{}))
}
