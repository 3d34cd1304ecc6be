package pipeline

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cashflow/posrecon/internal/ingestion"
)

// Fingerprint hashes the content of every candidate file under dir
// together with its relative path and size. Any added, removed, renamed or
// edited file changes the result. Files that cannot be read are folded in
// by path with an unreadable marker; the reader reports them per file. It
// returns ErrNoData when dir is missing or holds no candidate files.
func Fingerprint(dir string) (string, error) {
	paths, err := ingestion.CollectFiles(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no files in %s", ErrNoData, dir)
	}

	h := sha256.New()
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = p
		}
		sum, size, err := hashFile(p)
		if err != nil {
			fmt.Fprintf(h, "%s\t-1\tunreadable\n", filepath.ToSlash(rel))
			continue
		}
		fmt.Fprintf(h, "%s\t%d\t%x\n", filepath.ToSlash(rel), size, sum)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
