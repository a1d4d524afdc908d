package adsearch

import (
	"strings"

	"github.com/jackzampolin/bankads/internal/jsontree"
)

// ArchiveMarker identifies the CDN path that serves a creative's rendered image.
const ArchiveMarker = "tpc.googlesyndication.com/archive/simgad/"

// Format is a creative's media kind.
type Format string

const (
	FormatImage Format = "image"
	FormatVideo Format = "video"
)

// formatKeys are the creative fields that may carry a format description.
var formatKeys = []string{"ad_creative_format", "creative_format", "format", "type", "ad_type"}

// DetectFormat classifies a creative as video when any format field mentions "video".
func DetectFormat(creative jsontree.Object) Format {
	for _, key := range formatKeys {
		if v, ok := creative.String(key); ok && strings.Contains(strings.ToLower(v), "video") {
			return FormatVideo
		}
	}
	return FormatImage
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http")
}

// BestPreviewURL picks the creative's archive image URL wherever it is nested,
// falling back to the first URL in document order.
func BestPreviewURL(creative any) (string, bool) {
	if u, ok := jsontree.FindString(creative, func(s string) bool {
		return isURL(s) && strings.Contains(s, ArchiveMarker)
	}); ok {
		return u, true
	}
	return jsontree.FindString(creative, isURL)
}
