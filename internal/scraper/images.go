package scraper

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gocolly/colly/v2"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".svg":  true,
}

// saveImage downloads an image once and returns its ImageRef. Images are
// deduplicated by URL hash; a file already on disk is not fetched again.
func (s *Scraper) saveImage(imageURL, articleID, title string) (ImageRef, error) {
	if imageURL == "" {
		return ImageRef{}, fmt.Errorf("empty image URL")
	}

	id := contentHash(imageURL)
	ext := strings.ToLower(path.Ext(strings.SplitN(imageURL, "?", 2)[0]))
	if !allowedImageExts[ext] {
		ext = ".jpg"
	}
	filename := id + ext
	if title == "" {
		title = "Image " + id
	}

	info := ImageRef{
		ID:          id,
		OriginalURL: imageURL,
		Filename:    filename,
		ArticleID:   articleID,
		Title:       title,
		LocalPath:   path.Join("images", filename),
	}

	dest := filepath.Join(s.imagesDir, filename)
	if _, err := os.Stat(dest); err == nil {
		return info, nil
	}

	ctx := colly.NewContext()
	ctx.Put("local_path", dest)
	if err := s.images.Request("GET", imageURL, nil, ctx, nil); err != nil {
		return ImageRef{}, fmt.Errorf("fetch image: %w", err)
	}
	if msg := ctx.Get("save_error"); msg != "" {
		return ImageRef{}, fmt.Errorf("save image: %s", msg)
	}
	return info, nil
}
