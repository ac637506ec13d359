package internal

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// ArchiveLimits controls zip bomb protection thresholds when reading pass
// bundles.
type ArchiveLimits struct {
	// MaxDecompressionRatio is the maximum allowed ratio of uncompressed to
	// compressed size for a single entry.
	MaxDecompressionRatio int64

	// MaxTotalSize is the maximum total bytes extracted from one bundle.
	MaxTotalSize int64

	// MaxEntryCount is the maximum number of entries read from one bundle.
	// Passes carry a handful of files plus localized images.
	MaxEntryCount int

	// MaxEntrySize is the maximum decompressed size of a single entry.
	MaxEntrySize int64
}

// DefaultArchiveLimits returns conservative defaults for pass bundles.
func DefaultArchiveLimits() ArchiveLimits {
	return ArchiveLimits{
		MaxDecompressionRatio: 100,
		MaxTotalSize:          64 * 1024 * 1024, // 64 MB
		MaxEntryCount:         1_000,
		MaxEntrySize:          10 * 1024 * 1024, // 10 MB
	}
}

// ReadBundle extracts the regular files of a zip archive into memory.
// Unlike a lenient scan, every limit violation is an error: a bundle that
// cannot be read completely cannot be verified.
func ReadBundle(data []byte, limits ArchiveLimits) (map[string][]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}

	files := make(map[string][]byte, len(reader.File))
	var totalSize int64

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if len(files) >= limits.MaxEntryCount {
			return nil, fmt.Errorf("bundle has more than %d entries", limits.MaxEntryCount)
		}
		if _, dup := files[f.Name]; dup {
			return nil, fmt.Errorf("bundle has duplicate entry %s", f.Name)
		}

		if f.CompressedSize64 > 0 {
			ratio := int64(f.UncompressedSize64) / int64(f.CompressedSize64)
			if ratio > limits.MaxDecompressionRatio {
				return nil, fmt.Errorf("entry %s: decompression ratio %d exceeds limit %d",
					f.Name, ratio, limits.MaxDecompressionRatio)
			}
		}
		if int64(f.UncompressedSize64) > limits.MaxEntrySize {
			return nil, fmt.Errorf("entry %s: size %d exceeds limit %d",
				f.Name, f.UncompressedSize64, limits.MaxEntrySize)
		}
		if totalSize+int64(f.UncompressedSize64) > limits.MaxTotalSize {
			return nil, fmt.Errorf("bundle exceeds total size limit %d", limits.MaxTotalSize)
		}

		entry, err := readZipEntry(f, limits.MaxEntrySize)
		if err != nil {
			return nil, err
		}
		totalSize += int64(len(entry))
		files[f.Name] = entry
	}

	slog.Debug("read bundle", "entries", len(files), "bytes", totalSize)
	return files, nil
}

// readZipEntry reads a zip entry with an enforced size limit via
// io.LimitReader, regardless of what the header claims.
func readZipEntry(f *zip.File, maxSize int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			slog.Warn("closing bundle entry", "entry", f.Name, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(rc, safeLimitSize(maxSize)))
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("entry %s exceeds max size (%d bytes)", f.Name, maxSize)
	}
	return data, nil
}

// safeLimitSize returns maxSize+1 for overflow detection in io.LimitReader,
// clamped to math.MaxInt64.
func safeLimitSize(maxSize int64) int64 {
	if maxSize == math.MaxInt64 {
		return math.MaxInt64
	}
	return maxSize + 1
}
