package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage reports the on-disk footprint of the vector store and the source corpus.
type DiskUsage struct {
	VectorStoreBytes int64 `json:"vector_store_bytes"`
	SourceBytes      int64 `json:"source_bytes"`
}

// MeasureDiskUsage sums the sizes of the vector store and source directories.
func MeasureDiskUsage(vectorStoreDir, sourceDir string) (DiskUsage, error) {
	var (
		u   DiskUsage
		err error
	)
	if u.VectorStoreBytes, err = DiskUsageBytes(vectorStoreDir); err != nil {
		return u, err
	}
	if u.SourceBytes, err = DiskUsageBytes(sourceDir); err != nil {
		return u, err
	}
	return u, nil
}

// DiskUsageBytes returns the total size in bytes of the given files or directories.
// Empty and missing paths contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
