package usecase

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

const (
	defaultMaxArchiveDepth = 2
	defaultMaxEntryBytes   = 16 << 20
	totalBytesPerEntryCap  = 4 // default total budget, in multiples of the entry cap
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
)

// ArchiveConfig holds configuration for the archive decoder
type ArchiveConfig struct {
	MaxDepth      int
	MaxEntryBytes int64
	MaxTotalBytes int64
	Logger        *zap.Logger
}

// ArchiveDecoder unpacks nested zip/gzip exports into JSON and text entries
type ArchiveDecoder struct {
	maxDepth      int
	maxEntryBytes int64
	maxTotalBytes int64
	logger        *zap.Logger
}

// NewArchiveDecoder creates a new archive decoder with the given configuration
func NewArchiveDecoder(config ArchiveConfig) *ArchiveDecoder {
	if config.MaxDepth <= 0 {
		config.MaxDepth = defaultMaxArchiveDepth
	}
	if config.MaxEntryBytes <= 0 {
		config.MaxEntryBytes = defaultMaxEntryBytes
	}
	if config.MaxTotalBytes <= 0 {
		config.MaxTotalBytes = config.MaxEntryBytes * totalBytesPerEntryCap
	}
	return &ArchiveDecoder{
		maxDepth:      config.MaxDepth,
		maxEntryBytes: config.MaxEntryBytes,
		maxTotalBytes: config.MaxTotalBytes,
		logger:        logger.OrNop(config.Logger),
	}
}

// ClassifyBytes identifies a buffer by signature. Container magic wins over JSON sniffing.
func ClassifyBytes(data []byte) domain.ContainerKind {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return domain.ContainerZip
	case bytes.HasPrefix(data, gzipMagic):
		return domain.ContainerGzip
	case LooksLikeJSONText(data):
		return domain.ContainerJSON
	default:
		return domain.ContainerUnknown
	}
}

// LooksLikeJSONText reports whether data, after a BOM and whitespace, opens an object or array
func LooksLikeJSONText(data []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

type pendingEntry struct {
	path  string
	data  []byte
	depth int
}

// Decode flattens nested containers into leaf entries. It never fails: a
// corrupt branch is logged and skipped while its siblings are still decoded,
// and an unrecognized top-level buffer yields no entries. Everything inflated
// during one call shares the total byte budget; once it is spent the
// remaining entries are dropped.
func (d *ArchiveDecoder) Decode(data []byte) []domain.RawArchiveEntry {
	var out []domain.RawArchiveEntry
	work := []pendingEntry{{path: "", data: data, depth: 0}}
	budget := d.maxTotalBytes

	for len(work) > 0 {
		item := work[0]
		work = work[1:]

		if item.depth > d.maxDepth {
			d.logger.Debug("dropping entry beyond nesting limit",
				zap.String("path", item.path),
				zap.Int("depth", item.depth))
			continue
		}

		switch ClassifyBytes(item.data) {
		case domain.ContainerZip:
			children, err := d.unzip(item, &budget)
			if err != nil {
				d.logger.Warn("skipping corrupt zip", zap.String("path", item.path), zap.Error(err))
				continue
			}
			work = append(work, children...)

		case domain.ContainerGzip:
			inflated, err := d.gunzip(item.data, &budget)
			if err != nil {
				d.logger.Warn("skipping corrupt gzip", zap.String("path", item.path), zap.Error(err))
				continue
			}
			work = append(work, pendingEntry{
				path:  strings.TrimSuffix(item.path, ".gz"),
				data:  inflated,
				depth: item.depth + 1,
			})

		case domain.ContainerJSON:
			out = append(out, domain.RawArchiveEntry{Path: item.path, Kind: domain.EntryJSON, Data: item.data})

		default:
			// top-level text is the text parser's job, not an archive entry
			if item.depth > 0 && isRecipeText(item.data) {
				out = append(out, domain.RawArchiveEntry{Path: item.path, Kind: domain.EntryText, Data: item.data})
			}
		}
	}

	d.logger.Debug("decoded archive", zap.Int("entries", len(out)))
	return out
}

func (d *ArchiveDecoder) unzip(item pendingEntry, budget *int64) ([]pendingEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(item.data), int64(len(item.data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	children := make([]pendingEntry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || skipArchivePath(f.Name) {
			continue
		}
		if f.UncompressedSize64 > uint64(d.maxEntryBytes) {
			d.logger.Warn("skipping oversized zip entry",
				zap.String("entry", f.Name),
				zap.Uint64("size", f.UncompressedSize64))
			continue
		}

		if f.UncompressedSize64 > uint64(max(*budget, 0)) {
			d.logger.Warn("archive exceeds total size budget, dropping remaining entries",
				zap.String("entry", f.Name),
				zap.Int64("budget", d.maxTotalBytes))
			break
		}

		// bytes read from a failed entry still count against the budget
		data, err := d.readZipFile(f, min(d.maxEntryBytes, *budget))
		*budget -= int64(len(data))
		if err != nil {
			d.logger.Warn("skipping unreadable zip entry", zap.String("entry", f.Name), zap.Error(err))
			continue
		}
		children = append(children, pendingEntry{
			path:  joinArchivePath(item.path, f.Name),
			data:  data,
			depth: item.depth + 1,
		})
	}
	return children, nil
}

func (d *ArchiveDecoder) readZipFile(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readCapped(rc, limit)
}

func (d *ArchiveDecoder) gunzip(data []byte, budget *int64) ([]byte, error) {
	limit := min(d.maxEntryBytes, *budget)
	if limit <= 0 {
		return nil, fmt.Errorf("total size budget of %d bytes spent", d.maxTotalBytes)
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	decompressed, err := readCapped(reader, limit)
	*budget -= int64(len(decompressed))
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}
	return decompressed, nil
}

// readCapped reads at most limit bytes and fails if r holds more. On failure
// the bytes read so far are returned with the error.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > limit {
		return data, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return data, nil
}

// skipArchivePath filters OS metadata that zip tools add next to real entries
func skipArchivePath(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") || base == ".DS_Store" || strings.HasPrefix(base, "._")
}

func joinArchivePath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// isRecipeText accepts non-empty UTF-8 without NUL bytes, which rules out images
func isRecipeText(data []byte) bool {
	if len(bytes.TrimSpace(data)) == 0 || !utf8.Valid(data) {
		return false
	}
	return bytes.IndexByte(data, 0) < 0
}
