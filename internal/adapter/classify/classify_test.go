package classify

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ftypHeader(brand string) []byte {
	buf := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}
	buf = append(buf, []byte(brand)...)
	return append(buf, make([]byte, 16)...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantErr    error
		wantExt    string
		wantKind   domain.Kind
		wantTarget domain.TargetFormat
	}{
		{
			name:       "jpeg",
			data:       append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...),
			wantExt:    "jpg",
			wantKind:   domain.KindImage,
			wantTarget: domain.FormatImage,
		},
		{
			name:       "png",
			data:       append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...),
			wantExt:    "png",
			wantKind:   domain.KindImage,
			wantTarget: domain.FormatImage,
		},
		{
			name:       "gif89a routes to video pipeline with gif target",
			data:       append([]byte("GIF89a"), make([]byte, 32)...),
			wantExt:    "gif",
			wantKind:   domain.KindVideo,
			wantTarget: domain.FormatGIF,
		},
		{
			name:       "gif87a",
			data:       append([]byte("GIF87a"), make([]byte, 32)...),
			wantExt:    "gif",
			wantKind:   domain.KindVideo,
			wantTarget: domain.FormatGIF,
		},
		{
			name:       "webm ebml header",
			data:       append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 32)...),
			wantExt:    "webm",
			wantKind:   domain.KindVideo,
			wantTarget: domain.FormatVideo,
		},
		{
			name:       "mp4 isom brand",
			data:       ftypHeader("isom"),
			wantExt:    "mp4",
			wantKind:   domain.KindVideo,
			wantTarget: domain.FormatVideo,
		},
		{
			name:       "quicktime brand",
			data:       ftypHeader("qt  "),
			wantExt:    "mov",
			wantKind:   domain.KindVideo,
			wantTarget: domain.FormatVideo,
		},
		{
			name: "webp riff container",
			data: append([]byte{
				'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00,
				'W', 'E', 'B', 'P',
			}, make([]byte, 32)...),
			wantExt:    "webp",
			wantKind:   domain.KindImage,
			wantTarget: domain.FormatImage,
		},
		{
			name:    "garbage bytes unrecognized",
			data:    []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
			wantErr: domain.ErrUnrecognizedType,
		},
		{
			name:    "empty file unrecognized",
			data:    nil,
			wantErr: domain.ErrUnrecognizedType,
		},
		{
			name:    "pdf recognized but unsupported",
			data:    append([]byte("%PDF-1.7"), make([]byte, 32)...),
			wantErr: domain.ErrUnsupportedType,
		},
		{
			name:    "mp3 id3 recognized but unsupported",
			data:    append([]byte("ID3"), make([]byte, 32)...),
			wantErr: domain.ErrUnsupportedType,
		},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.data)
			ft, err := c.Classify(r)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ft.Ext)
			assert.Equal(t, tt.wantKind, ft.Kind)
			assert.Equal(t, tt.wantTarget, ft.Target)

			// The reader must be rewound for staging.
			pos, err := r.Seek(0, io.SeekCurrent)
			require.NoError(t, err)
			assert.Equal(t, int64(0), pos)
		})
	}
}
