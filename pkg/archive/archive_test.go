package archive

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	typ  byte
}

func writeArchive(t *testing.T, path string, entries []entry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typ, Mode: 0o640}
		switch e.typ {
		case tar.TypeDir:
			hdr.Mode = 0o755
		case tar.TypeSymlink:
			hdr.Linkname = "/etc/passwd"
		case tar.TypeReg:
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typ == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw", "set1.tar.gz")
	writeArchive(t, path, []entry{
		{name: "ds1/", typ: tar.TypeDir},
		{name: "ds1/msa.fasta", body: ">a\nACGT\n", typ: tar.TypeReg},
		{name: "ds2/tree.newick", body: "(a,b);", typ: tar.TypeReg},
		{name: "ds2/link", typ: tar.TypeSymlink},
	})

	n, err := Extract(context.Background(), path, DestDir(path))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := os.ReadFile(filepath.Join(dir, "raw", "set1", "ds2", "tree.newick"))
	require.NoError(t, err)
	assert.Equal(t, "(a,b);", string(b))

	_, err = os.Lstat(filepath.Join(dir, "raw", "set1", "ds2", "link"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtract_UnsafePath(t *testing.T) {
	for _, name := range []string{"../evil.txt", "a/../../evil.txt", "/abs.txt"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "bad.tar.gz")
			writeArchive(t, path, []entry{{name: name, body: "x", typ: tar.TypeReg}})
			_, err := Extract(context.Background(), path, filepath.Join(dir, "out"))
			assert.ErrorIs(t, err, ErrUnsafePath)
		})
	}
}

func TestExtract_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err := Extract(context.Background(), path, t.TempDir())
	assert.Error(t, err)
}

func TestExtractAll(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, filepath.Join(dir, "raw", "a.tar.gz"), []entry{{name: "x.csv", body: "1", typ: tar.TypeReg}})
	writeArchive(t, filepath.Join(dir, "raw", "b.tar.gz"), []entry{
		{name: "y.csv", body: "2", typ: tar.TypeReg},
		{name: "z.csv", body: "3", typ: tar.TypeReg},
	})

	res, err := ExtractAll(context.Background(), dir, "raw/*.tar.gz", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, filepath.Join(dir, "raw", "a"), res[0].Dir)
	assert.Equal(t, 1, res[0].Files)
	assert.Equal(t, 2, res[1].Files)
	assert.FileExists(t, filepath.Join(dir, "raw", "b", "z.csv"))

	_, err = ExtractAll(context.Background(), dir, "nothing/*.tar.gz", 1)
	assert.ErrorIs(t, err, ErrNoArchives)
}

func TestMatch_Recursive(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"f/a/1.csv", "f/b/c/2.csv", "f/3.txt"} {
		full := filepath.Join(dir, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
	got, err := Match(dir, "f/**/*.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "f", "a", "1.csv"),
		filepath.Join(dir, "f", "b", "c", "2.csv"),
	}, got)
}
