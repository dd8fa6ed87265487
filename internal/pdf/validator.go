package pdf

import (
	"bytes"
	"fmt"

	"github.com/cjs1301/lyric-extractor/internal/domain"
)

// Input formats accepted by the pipeline.
const (
	FormatPDF  = "pdf"
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// DetectFormat sniffs the input's magic bytes. It returns "" for
// unrecognized content.
func DetectFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG
	case len(data) >= 12 && bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], webpMagic):
		return FormatWebP
	}
	return ""
}

// Validator checks uploaded bytes before rasterization.
type Validator struct {
	maxBytes int64
}

// NewValidator creates a validator. A non-positive maxBytes disables
// the size cap.
func NewValidator(maxBytes int64) *Validator {
	return &Validator{maxBytes: maxBytes}
}

// ValidatePDF checks that data is a plausible PDF within the size cap.
func (v *Validator) ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return domain.ValidationError("uploaded file is empty", nil)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return domain.ValidationError(fmt.Sprintf("file exceeds size limit of %d bytes", v.maxBytes), nil)
	}
	if DetectFormat(data) != FormatPDF {
		return domain.ValidationError("file is not a PDF", nil)
	}
	return nil
}

// ValidateImage checks that data is a supported image format within
// the size cap.
func (v *Validator) ValidateImage(index int, data []byte) error {
	if len(data) == 0 {
		return domain.ValidationError(fmt.Sprintf("image %d is empty", index), nil)
	}
	if v.maxBytes > 0 && int64(len(data)) > v.maxBytes {
		return domain.ValidationError(fmt.Sprintf("image %d exceeds size limit of %d bytes", index, v.maxBytes), nil)
	}
	switch DetectFormat(data) {
	case FormatPNG, FormatJPEG, FormatWebP:
		return nil
	}
	return domain.ValidationError(fmt.Sprintf("image %d is not a supported format", index), nil)
}
