// Package archive unpacks the gzip-compressed tar archives holding the raw
// phylogenetic datasets.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsafePath = errors.New("archive: entry escapes destination")
	ErrNoArchives = errors.New("archive: no archives match")
)

// Result describes one extracted archive.
type Result struct {
	Archive string
	Dir     string
	Files   int
}

// Extract unpacks the .tar.gz at archivePath into destDir and returns the
// number of regular files written. Only directories and regular files are
// created; links and devices are skipped.
func Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("archive: %s: %w", archivePath, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, err
	}

	tr := tar.NewReader(zr)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("archive: %s: %w", archivePath, err)
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			return n, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr)); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr); err != nil {
				return n, err
			}
			n++
		default:
			slog.Debug("skipping archive entry", "archive", archivePath, "name", hdr.Name, "type", hdr.Typeflag)
		}
	}
}

// safeJoin resolves name below root, rejecting absolute paths and "..".
func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func dirMode(hdr *tar.Header) os.FileMode {
	return os.FileMode(hdr.Mode).Perm() | 0o700
}

func writeFile(path string, r io.Reader, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return out.Close()
}

// Match returns the files under root matching the doublestar pattern, as
// sorted paths joined with root.
func Match(root, pattern string) ([]string, error) {
	rel, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(rel)
	out := make([]string, len(rel))
	for i, p := range rel {
		out[i] = filepath.Join(root, filepath.FromSlash(p))
	}
	return out, nil
}

// ExtractAll extracts every archive under root matching pattern into a sibling
// directory named after the archive without its .tar.gz/.tgz suffix.
func ExtractAll(ctx context.Context, root, pattern string, workers int) ([]Result, error) {
	archives, err := Match(root, pattern)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, pattern)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(archives))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range archives {
		i, path := i, path
		g.Go(func() error {
			dir := DestDir(path)
			n, err := Extract(ctx, path, dir)
			if err != nil {
				return err
			}
			results[i] = Result{Archive: path, Dir: dir, Files: n}
			slog.Info("extracted archive", "archive", path, "dir", dir, "files", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DestDir is the directory an archive is extracted into.
func DestDir(archivePath string) string {
	for _, ext := range []string{".tar.gz", ".tgz"} {
		if strings.HasSuffix(archivePath, ext) {
			return strings.TrimSuffix(archivePath, ext)
		}
	}
	return strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
}
