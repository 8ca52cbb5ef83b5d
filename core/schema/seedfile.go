package schema

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
)

// SeedFormat is the on-disk format of a seed file.
type SeedFormat string

const (
	FormatCSV     SeedFormat = "csv"
	FormatJSON    SeedFormat = "json"
	FormatParquet SeedFormat = "parquet"
	FormatJSONL   SeedFormat = "jsonl"
	FormatInfer   SeedFormat = "infer"
)

// Compression is the compression applied to a seed file.
type Compression string

const (
	CompressionGzip   Compression = "gzip"
	CompressionBrotli Compression = "brotli"
	CompressionZstd   Compression = "zstd"
	CompressionInfer  Compression = "infer"

	// CompressionNone is only ever produced by Detect.
	CompressionNone Compression = "none"
)

// SeedFile locates a seed's data. Path is resolved by the path factory
// during parsing.
type SeedFile struct {
	Type        SeedFormat  `yaml:"type" validate:"oneof=csv json parquet jsonl infer"`
	Compression Compression `yaml:"compression" validate:"oneof=gzip brotli zstd infer"`
	Path        string      `yaml:"path" validate:"required"`
}

var compressionExts = map[string]Compression{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".br":   CompressionBrotli,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
}

var formatExts = map[string]SeedFormat{
	".csv":     FormatCSV,
	".json":    FormatJSON,
	".parquet": FormatParquet,
	".jsonl":   FormatJSONL,
	".ndjson":  FormatJSONL,
}

// Detect resolves "infer" for the format and compression. Extensions are
// tried first ("users.csv.gz" is csv with gzip); when the format is still
// unknown the file's content is sniffed. Explicit settings are returned as is.
func (f SeedFile) Detect(fs billy.Basic) (SeedFormat, Compression, error) {
	format, compression := f.Type, f.Compression
	name := f.Path

	if compression == CompressionInfer {
		compression = CompressionNone
		ext := strings.ToLower(filepath.Ext(name))
		if c, ok := compressionExts[ext]; ok {
			compression = c
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
	}

	if format == FormatInfer {
		if ft, ok := formatExts[strings.ToLower(filepath.Ext(name))]; ok {
			format = ft
		}
	}
	if format != FormatInfer {
		return format, compression, nil
	}

	mt, err := sniff(fs, f.Path)
	if err != nil {
		return "", "", err
	}

	switch {
	case mt.Is("application/vnd.apache.parquet"):
		format = FormatParquet
	case mt.Is("application/x-ndjson"):
		format = FormatJSONL
	case mt.Is("application/json"):
		format = FormatJSON
	case mt.Is("text/csv"):
		format = FormatCSV
	default:
		return "", "", fmt.Errorf("seed file %s: cannot infer format from content type %s", f.Path, mt.String())
	}

	return format, compression, nil
}

func sniff(fs billy.Basic, path string) (*mimetype.MIME, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()

	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, fmt.Errorf("detect seed file %s: %w", path, err)
	}
	return mt, nil
}
