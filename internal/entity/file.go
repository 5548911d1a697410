package entity

import "slices"

const (
	FileTypeRegular = "REG"
	FileTypeDir     = "DIR"
	FileTypeSymlink = "SYMLNK"

	AttrFileID           = "fileId"
	AttrName             = "name"
	AttrType             = "type"
	AttrParentID         = "parentId"
	AttrIndex            = "index"
	AttrConflictingName  = "conflictingName"
	AttrSize             = "size"
	AttrMtime            = "mtime"
	AttrCtime            = "ctime"
	AttrAtime            = "atime"
	AttrPosixPermissions = "posixPermissions"
	AttrRecallRootID     = "recallRootId"
	AttrArchiveID        = "archiveId"
)

// File is a loaded file record. Only the attributes that were requested are
// present in Attributes.
type File struct {
	GRI        string            `json:"gri" yaml:"gri"`
	ParentGRI  string            `json:"parentGri,omitempty" yaml:"parent_gri,omitempty"`
	Attributes map[string]string `json:"attributes" yaml:"attributes"`
}

func (f *File) Attr(name string) string {
	return f.Attributes[name]
}

func (f *File) Name() string {
	return f.Attr(AttrName)
}

func (f *File) Type() string {
	return f.Attr(AttrType)
}

func (f *File) IsDir() bool {
	return f.Type() == FileTypeDir
}

// AttrNames returns sorted attribute names.
func (f *File) AttrNames() []string {
	names := make([]string, 0, len(f.Attributes))
	for name := range f.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
