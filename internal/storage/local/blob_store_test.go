package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seapigy/procuro-site-sub000/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "nested", "snapshots")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		require.NotNil(t, store)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		t.Parallel()
		_, err := local.New(local.Config{})
		require.Error(t, err)
	})

	t.Run("BaseDirIsFile", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		require.ErrorContains(t, err, "not a directory")
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "nested path", path: "snapshots/walmart/abc.html"},
		{name: "flat path", path: "page.html"},
		{name: "empty path", path: "", wantErr: "path is required"},
		{name: "traversal", path: "../escape.html", wantErr: "path traversal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			body := []byte("<html>" + tc.name + "</html>")
			uri, err := store.PutObject(context.Background(), tc.path, "text/html", bytes.NewReader(body))
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			full := filepath.Join(dir, tc.path)
			require.Equal(t, "file://"+full, uri)

			// #nosec G304 -- test reads from the controlled temp directory.
			got, err := os.ReadFile(full)
			require.NoError(t, err)
			require.Equal(t, body, got)
		})
	}
}

func TestPutObjectOverwrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	for _, body := range []string{"first", "second"} {
		_, err := store.PutObject(context.Background(), "same.html", "text/html", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	got, err := os.ReadFile(filepath.Join(dir, "same.html"))
	require.NoError(t, err)
	require.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}
