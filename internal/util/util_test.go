package util

import (
	"testing"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/stretchr/testify/require"
)

func TestGRI(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		wantPath string
	}{
		{name: "root", path: "/", wantPath: "/"},
		{name: "nested", path: "dir/sub/file.txt", wantPath: "/dir/sub/file.txt"},
		{name: "not clean", path: "/dir//sub/", wantPath: "/dir/sub"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gri := GRIFromPath(tc.path)
			require.Contains(t, gri, "file.")
			require.Contains(t, gri, ".instance:private")

			p, err := PathFromGRI(gri)
			require.NoError(t, err)
			require.Equal(t, tc.wantPath, p)
		})
	}
}

func TestBadGRI(t *testing.T) {
	for _, gri := range []string{"", "space.abc.instance:private", "file..instance:private", "file.%%%.instance:private"} {
		_, err := PathFromGRI(gri)
		require.ErrorIs(t, err, common.ErrInvalidGRI, gri)
	}
}
