package utils

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["file"][0]
}

func TestDiskPutAndDelete(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "/storage/")
	require.NoError(t, err)

	rel, err := d.Put("covers", fileHeader(t, "Photo.PNG", []byte("png-bytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "covers/"))
	assert.True(t, strings.HasSuffix(rel, ".png"))
	assert.True(t, d.Exists(rel))
	assert.Equal(t, "/storage/"+rel, d.URL(rel, "/default.png"))

	require.NoError(t, d.Delete(rel))
	assert.False(t, d.Exists(rel))
	assert.NoError(t, d.Delete(rel), "deleting a missing file is not an error")
}

func TestDiskRejectsBadUploads(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	_, err = d.Put("covers", fileHeader(t, "script.sh", []byte("#!/bin/sh")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = d.Put("covers", fileHeader(t, "big.jpg", make([]byte, MaxImageSize+1)))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestDiskURLFallback(t *testing.T) {
	d := &Disk{PublicPrefix: "/storage"}
	assert.Equal(t, "/static/cover.png", d.URL("", "/static/cover.png"))
}

func TestDiskPathsStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	d, err := NewDisk(filepath.Join(root, "store"), "/storage")
	require.NoError(t, err)

	outside := filepath.Join(root, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	require.NoError(t, d.Delete("../secret.txt"))
	_, err = os.Stat(outside)
	assert.NoError(t, err, "files outside the root are never touched")
}

func TestDiskSweep(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	kept, err := d.Put("covers", fileHeader(t, "a.jpg", []byte("a")))
	require.NoError(t, err)
	orphan, err := d.Put("covers", fileHeader(t, "b.jpg", []byte("b")))
	require.NoError(t, err)
	fresh, err := d.Put("photos", fileHeader(t, "c.jpg", []byte("c")))
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	for _, rel := range []string{kept, orphan} {
		require.NoError(t, os.Chtimes(filepath.Join(d.Root, rel), old, old))
	}

	removed, err := d.Sweep([]string{"covers", "photos", "missing"}, map[string]struct{}{kept: {}}, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, removed)
	assert.True(t, d.Exists(kept))
	assert.True(t, d.Exists(fresh))
	assert.False(t, d.Exists(orphan))
}
