package textsplit

import (
	"fmt"
	"regexp"
)

// Image markers arrive from the scraper as [[IMAGE:<local_path>|<title>]].
// Before splitting they are swapped for placeholder tokens so the splitter
// never breaks a marker across a chunk boundary; after splitting the
// placeholders are swapped back.
var (
	markerPattern      = regexp.MustCompile(`\[\[IMAGE:[^\]]+\]\]`)
	markerPartsPattern = regexp.MustCompile(`\[\[IMAGE:([^|]+)\|([^\]]+)\]\]`)
	placeholderPattern = regexp.MustCompile(`__IMAGE_MARKER_\d+__`)
)

// MarkerImage is an image referenced by a chunk's markers.
type MarkerImage struct {
	Path  string
	Title string
}

// Protect replaces every image marker with a placeholder token and returns
// the rewritten text together with the placeholder→marker map needed to
// reverse the substitution.
func Protect(text string) (string, map[string]string) {
	placeholders := make(map[string]string)
	i := 0
	protected := markerPattern.ReplaceAllStringFunc(text, func(marker string) string {
		placeholder := fmt.Sprintf("__IMAGE_MARKER_%d__", i)
		placeholders[placeholder] = marker
		i++
		return placeholder
	})
	return protected, placeholders
}

// Restore reverses Protect, substituting original markers back into text.
func Restore(text string, placeholders map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(placeholder string) string {
		if marker, ok := placeholders[placeholder]; ok {
			return marker
		}
		return placeholder
	})
}

// Normalize rewrites a chunk's raw image markers to the inline form shown to
// the embedding model and the generator, [IMAGE: <title>], and returns the
// images the chunk referenced.
func Normalize(chunk string) (string, []MarkerImage) {
	var images []MarkerImage
	normalized := markerPartsPattern.ReplaceAllStringFunc(chunk, func(marker string) string {
		parts := markerPartsPattern.FindStringSubmatch(marker)
		images = append(images, MarkerImage{Path: parts[1], Title: parts[2]})
		return fmt.Sprintf("[IMAGE: %s]", parts[2])
	})
	return normalized, images
}
