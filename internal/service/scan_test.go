package service

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T, files ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for _, f := range files {
		require.NoError(t, util.WriteFile(fs, f, []byte("img"), 0o644))
	}
	return fs
}

func TestCollectFiles(t *testing.T) {
	fs := newTestFS(t,
		"/tex/tires_Albedo.png",
		"/tex/tires_Albedo.tx",
		"/tex/readme.txt",
		"/tex/noUnderscore.png",
		"/tex/sub/rims_Metal.exr",
	)
	s := NewScanner(fs, taxonomy.Default())

	files, err := s.CollectFiles("/tex", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tex/tires_Albedo.png"}, files)

	files, err = s.CollectFiles("/tex", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/tex/sub/rims_Metal.exr", "/tex/tires_Albedo.png"}, files)

	_, err = s.CollectFiles("/missing", false)
	assert.Error(t, err)

	_, err = s.CollectFiles("/tex/tires_Albedo.png", false)
	assert.ErrorContains(t, err, "not a directory")
}

func TestHasTextures(t *testing.T) {
	fs := newTestFS(t, "/tex/tires_Albedo.png", "/empty/notes.txt")
	s := NewScanner(fs, taxonomy.Default())

	assert.True(t, s.HasTextures("/tex"))
	assert.False(t, s.HasTextures("/empty"))
	assert.False(t, s.HasTextures("/nope"))
}

func TestScanUnionsDirectories(t *testing.T) {
	fs := newTestFS(t,
		"/a/rock_Albedo_2K.png",
		"/a/rock_Specialize.png",
		"/b/rock_Rough.png",
		"/b/moss_Albedo_1001.exr",
	)
	s := NewScanner(fs, taxonomy.Default())

	res, err := s.Scan([]string{"/a", "/b"}, false)
	require.NoError(t, err)

	assert.Equal(t, 4, res.FilesSeen)
	assert.Equal(t, 3, res.Classified)
	assert.Equal(t, []string{"/a/rock_Specialize.png"}, res.Unclassified)
	assert.Equal(t, []string{"moss", "rock"}, SortedNames(res.Sets))

	rock := res.Sets["rock"]
	assert.Equal(t, "2K", rock.Resolution)
	assert.Equal(t, []string{"/a", "/b"}, rock.Dirs)
	assert.True(t, rock.Has(taxonomy.RoleRoughness))
	assert.True(t, res.Sets["moss"].UDIM)

	_, err = s.Scan([]string{"/a", "/missing"}, false)
	assert.Error(t, err)
}
