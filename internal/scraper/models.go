// Package scraper crawls a documentation site and emits one structured
// article per page together with downloaded inline images. Image positions
// are preserved in the article text as [[IMAGE:<local_path>|<title>]]
// markers.
package scraper

import (
	"crypto/md5"
	"encoding/hex"
)

// Article is one scraped documentation page. Identified by a hash of its
// source URL, so re-crawling the same page overwrites instead of
// duplicating.
type Article struct {
	ID          string                `json:"id"`
	URL         string                `json:"url"`
	Title       string                `json:"title"`
	ContentHTML string                `json:"content_html"`
	ContentText string                `json:"content_text"`
	Images      []ImageRef            `json:"images"`
	Markers     map[string]MarkerInfo `json:"image_markers"`
}

// ImageRef describes a downloaded image. Identified by a hash of the image
// URL; articles embedding the same image share one ImageRef and one file.
type ImageRef struct {
	ID          string `json:"id"`
	OriginalURL string `json:"original_url"`
	Filename    string `json:"filename"`
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	LocalPath   string `json:"local_path"`
}

// MarkerInfo ties an inline marker in the article text to its image.
type MarkerInfo struct {
	Marker string   `json:"marker"`
	Image  ImageRef `json:"image"`
}

// ArticleIndexEntry summarizes one article in article_index.json.
type ArticleIndexEntry struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	ImageCount int      `json:"image_count"`
	Images     []string `json:"images"`
}

// ImageIndexEntry summarizes one unique image in image_index.json, listing
// every article that references it.
type ImageIndexEntry struct {
	ID       string              `json:"id"`
	Filename string              `json:"filename"`
	Path     string              `json:"path"`
	Title    string              `json:"title"`
	Articles []ImageArticleEntry `json:"articles"`
}

// ImageArticleEntry identifies an article referencing an image.
type ImageArticleEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// contentHash returns the deterministic identifier for a URL.
func contentHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
