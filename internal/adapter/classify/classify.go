// Package classify sniffs upload byte streams to determine their true media
// type. Detection never trusts the filename or extension.
package classify

import (
	"errors"
	"io"
	"net/http"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/port"
)

// magicBytesBufferSize is the number of bytes read for content type detection.
const magicBytesBufferSize = 512

// supported maps every allow-listed MIME type to its classification. GIF is
// routed through the video pipeline but keeps GIF as its target format.
var supported = map[string]domain.FileType{
	"image/jpeg":      {Ext: "jpg", MIME: "image/jpeg", Kind: domain.KindImage, Target: domain.FormatImage},
	"image/png":       {Ext: "png", MIME: "image/png", Kind: domain.KindImage, Target: domain.FormatImage},
	"image/webp":      {Ext: "webp", MIME: "image/webp", Kind: domain.KindImage, Target: domain.FormatImage},
	"image/gif":       {Ext: "gif", MIME: "image/gif", Kind: domain.KindVideo, Target: domain.FormatGIF},
	"video/mp4":       {Ext: "mp4", MIME: "video/mp4", Kind: domain.KindVideo, Target: domain.FormatVideo},
	"video/webm":      {Ext: "webm", MIME: "video/webm", Kind: domain.KindVideo, Target: domain.FormatVideo},
	"video/quicktime": {Ext: "mov", MIME: "video/quicktime", Kind: domain.KindVideo, Target: domain.FormatVideo},
}

type Classifier struct{}

func NewClassifier() port.Classifier {
	return &Classifier{}
}

// Classify reads up to 512 leading bytes, detects the MIME type and rewinds
// the reader. It returns domain.ErrUnrecognizedType when no signature matches
// and domain.ErrUnsupportedType when the type is known but not allow-listed.
func (c *Classifier) Classify(r io.ReadSeeker) (domain.FileType, error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.FileType{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return domain.FileType{}, err
	}
	if n == 0 {
		return domain.FileType{}, domain.ErrUnrecognizedType
	}
	buf = buf[:n]

	mime := detectCustomMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}
	if mime == "application/octet-stream" {
		return domain.FileType{}, domain.ErrUnrecognizedType
	}
	ft, ok := supported[mime]
	if !ok {
		return domain.FileType{}, domain.ErrUnsupportedType
	}
	return ft, nil
}

// detectCustomMagicBytes handles formats that http.DetectContentType does not
// recognize correctly.
func detectCustomMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// WebM/Matroska: EBML header (0x1A 0x45 0xDF 0xA3)
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/webm"
	}

	// WebP: RIFF....WEBP (bytes 0-3: RIFF, bytes 8-11: WEBP)
	if len(buf) >= 12 {
		if buf[0] == 'R' && buf[1] == 'I' && buf[2] == 'F' && buf[3] == 'F' &&
			buf[8] == 'W' && buf[9] == 'E' && buf[10] == 'B' && buf[11] == 'P' {
			return "image/webp"
		}
	}

	// MP4/QuickTime: ftyp box at offset 4 ([4 bytes size]["ftyp"][brand])
	if len(buf) >= 12 {
		if buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
			brand := string(buf[8:12])
			switch brand {
			case "qt  ":
				return "video/quicktime"
			default:
				return "video/mp4"
			}
		}
	}

	return ""
}

var _ port.Classifier = (*Classifier)(nil)
