package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultThumbnailWidth is the preview width in pixels.
const DefaultThumbnailWidth = 160

// Thumbnail renders a JPEG preview no wider than maxWidth and returns it as
// a data URL. Images already narrow enough are re-encoded at full size.
func Thumbnail(p Page, maxWidth int) (string, error) {
	if maxWidth <= 0 {
		maxWidth = DefaultThumbnailWidth
	}
	raw, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("page %d: decode base64: %w", p.Index, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("page %d: decode image: %w", p.Index, err)
	}

	b := img.Bounds()
	if b.Dx() > maxWidth {
		h := b.Dy() * maxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return "", fmt.Errorf("page %d: encode thumbnail: %w", p.Index, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Report summarises a fetch for the image diagnostics route.
type Report struct {
	ScriptID          string   `json:"scriptId"`
	ImagesFound       int      `json:"imagesFound"`
	ImageSizes        []int    `json:"imageSizes"`
	FirstImagePreview *string  `json:"firstImagePreview"`
	Thumbnails        []string `json:"thumbnails"`
	Status            string   `json:"status"`
}

// previewPages is how many pages are summarised in a Report.
const previewPages = 5

// NewReport builds a Report. Sizes are base64 lengths of the first five
// pages; thumbnails that cannot be rendered are left empty.
func NewReport(scriptID string, pages []Page, thumbWidth int) Report {
	r := Report{
		ScriptID:    scriptID,
		ImagesFound: len(pages),
		ImageSizes:  []int{},
		Thumbnails:  []string{},
		Status:      "no_images_found",
	}
	if len(pages) == 0 {
		return r
	}

	r.Status = "success"
	preview := pages[0].Encoded
	if len(preview) > 100 {
		preview = preview[:100]
	}
	preview += "..."
	r.FirstImagePreview = &preview

	for i, p := range pages {
		if i >= previewPages {
			break
		}
		r.ImageSizes = append(r.ImageSizes, len(p.Encoded))
		thumb, err := Thumbnail(p, thumbWidth)
		if err != nil {
			thumb = ""
		}
		r.Thumbnails = append(r.Thumbnails, thumb)
	}
	return r
}
