package schema

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFile_Detect(t *testing.T) {
	fs := memfs.New()
	writeFiles(t, fs, map[string]string{
		"seeds/users.csv":    "id,name\n1,ann\n",
		"seeds/users.csv.gz": "\x1f\x8b\x08\x00",
		"seeds/events.jsonl": "{\"id\":1}\n{\"id\":2}\n",
		"seeds/countries":    "[{\"code\":\"NL\"},{\"code\":\"BE\"}]",
		"seeds/lines":        "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n",
		"seeds/notes":        "just some prose",
		"seeds/data.parquet": "PAR1",
		"seeds/dump.zst":     "\x28\xb5\x2f\xfd",
	})

	tests := []struct {
		name            string
		file            SeedFile
		wantFormat      SeedFormat
		wantCompression Compression
		wantErr         bool
	}{
		{
			name:            "csv by extension",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/users.csv"},
			wantFormat:      FormatCSV,
			wantCompression: CompressionNone,
		},
		{
			name:            "compressed csv by extension",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/users.csv.gz"},
			wantFormat:      FormatCSV,
			wantCompression: CompressionGzip,
		},
		{
			name:            "jsonl by extension",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/events.jsonl"},
			wantFormat:      FormatJSONL,
			wantCompression: CompressionNone,
		},
		{
			name:            "parquet by extension",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/data.parquet"},
			wantFormat:      FormatParquet,
			wantCompression: CompressionNone,
		},
		{
			name:            "json by content",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/countries"},
			wantFormat:      FormatJSON,
			wantCompression: CompressionNone,
		},
		{
			name:            "jsonl by content",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/lines"},
			wantFormat:      FormatJSONL,
			wantCompression: CompressionNone,
		},
		{
			name:            "explicit settings skip the filesystem",
			file:            SeedFile{Type: FormatCSV, Compression: CompressionBrotli, Path: "seeds/absent"},
			wantFormat:      FormatCSV,
			wantCompression: CompressionBrotli,
		},
		{
			name:            "explicit compression keeps extension",
			file:            SeedFile{Type: FormatInfer, Compression: CompressionZstd, Path: "seeds/users.csv"},
			wantFormat:      FormatCSV,
			wantCompression: CompressionZstd,
		},
		{
			name:    "unrecognised content",
			file:    SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/notes"},
			wantErr: true,
		},
		{
			name:    "compressed without format",
			file:    SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/dump.zst"},
			wantErr: true,
		},
		{
			name:    "missing file",
			file:    SeedFile{Type: FormatInfer, Compression: CompressionInfer, Path: "seeds/absent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, compression, err := tt.file.Detect(fs)
			if tt.wantErr {
				assert.Error(t, err, "Detect() = %s, %s", format, compression)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, tt.wantCompression, compression)
		})
	}
}

func TestTableConfig_IsEnabled(t *testing.T) {
	off := false
	on := true

	assert.True(t, TableConfig{}.IsEnabled(), "tables are enabled by default")
	assert.False(t, TableConfig{Enabled: &off}.IsEnabled())
	assert.True(t, TableConfig{Enabled: &on}.IsEnabled())
}
