package utilities

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommaList(t *testing.T) {
	assert.Equal(t, []string{"driver", "rectify"}, SplitCommaList(" driver,,rectify ,"))
	assert.Empty(t, SplitCommaList(""))
	assert.Equal(t, "driver,rectify", JoinCommaList([]string{"driver", "rectify"}))
	assert.True(t, ContainsAny("driver,nvblox_people", "vgl", "nvblox"))
	assert.False(t, ContainsAny("driver", "vgl"))
}

func TestParseDuration(t *testing.T) {
	d, err := Parse("30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseOrDefault(" ", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	d, err = Parse("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = Parse("soon")
	assert.Error(t, err)
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	f, err := MakeDirParent(filepath.Join(root, "cuvgl_map", "keyframes", "frames.pb"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata.yaml"), []byte("output_folder: x\n"), 0o644))

	files, err := ListFiles(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cuvgl_map/keyframes/frames.pb", "metadata.yaml"}, files)

	assert.DirExists(t, filepath.Join(root, "cuvgl_map"))
	assert.True(t, PathExists(filepath.Join(root, "metadata.yaml")))
	assert.False(t, PathExists(""))

	_, err = ListFiles(filepath.Join(root, "metadata.yaml"))
	assert.Error(t, err)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond, 2*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("permanent")
	}, 2, time.Millisecond, time.Millisecond)
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, 2, calls)
}
