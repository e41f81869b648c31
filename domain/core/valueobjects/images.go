package valueobjects

import (
	"encoding/base64"
	"fmt"
	"strings"

	pkgerrors "citymemory/pkg/errors"
)

// Images is the ordered list of encoded raster images attached to a memory.
// Each entry is a data URL such as "data:image/jpeg;base64,...".
type Images struct {
	items []string
}

// NewImages validates count, encoding and decoded size of every image
func NewImages(items []string, maxCount, maxBytes int) (Images, error) {
	if len(items) > maxCount {
		return Images{}, pkgerrors.NewValidationError(fmt.Sprintf("at most %d images are allowed, got %d", maxCount, len(items)))
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		size, err := decodedImageSize(item)
		if err != nil {
			return Images{}, pkgerrors.NewValidationError(fmt.Sprintf("image %d: %v", i+1, err))
		}
		if size > maxBytes {
			return Images{}, pkgerrors.NewValidationError(fmt.Sprintf("image %d exceeds %d bytes", i+1, maxBytes))
		}
		out = append(out, item)
	}
	return Images{items: out}, nil
}

// ReconstructImages restores stored images without re-validation
func ReconstructImages(items []string) Images {
	if items == nil {
		items = []string{}
	}
	return Images{items: items}
}

// Items returns a copy of the image payloads
func (im Images) Items() []string {
	out := make([]string, len(im.items))
	copy(out, im.items)
	return out
}

// Len returns the number of images
func (im Images) Len() int { return len(im.items) }

func decodedImageSize(dataURL string) (int, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return 0, fmt.Errorf("must be a data:image URL")
	}
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 {
		return 0, fmt.Errorf("must be base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(";base64,"):])
	if err != nil {
		return 0, fmt.Errorf("invalid base64 payload")
	}
	return len(raw), nil
}
