package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/scanstudy/internal/models"
)

// FromFile turns an uploaded or dropped file into a CapturedImage.
// mediaType is the type declared by the client; when empty it is derived
// from the file name and finally from the content itself.
func FromFile(name, mediaType string, data []byte) (*models.CapturedImage, error) {
	mediaType = resolveMediaType(name, mediaType, data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, &InvalidInputError{MediaType: mediaType, Reason: "file is not an image"}
	}

	if len(data) == 0 {
		return nil, &InvalidInputError{MediaType: mediaType, Reason: "file is empty"}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &InvalidInputError{MediaType: mediaType, Reason: fmt.Sprintf("unable to decode image: %v", err)}
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &InvalidInputError{MediaType: mediaType, Reason: "image has no pixels"}
	}

	return &models.CapturedImage{
		Image:     img,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		MediaType: "image/" + format,
		Source:    "file",
	}, nil
}

// FromReader reads at most limit bytes from r and captures them with FromFile
func FromReader(name, mediaType string, r io.Reader, limit int64) (*models.CapturedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &InvalidInputError{MediaType: mediaType, Reason: fmt.Sprintf("file too large (max %d bytes)", limit)}
	}
	return FromFile(name, mediaType, data)
}

func resolveMediaType(name, declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return strings.ToLower(mt)
		}
		return strings.ToLower(declared)
	}

	if ext := filepath.Ext(name); ext != "" {
		if mt := mime.TypeByExtension(strings.ToLower(ext)); mt != "" {
			mt, _, _ = strings.Cut(mt, ";")
			return mt
		}
	}

	if len(data) == 0 {
		return ""
	}
	mt, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return mt
}
