package storage

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugRunes = 48
	fallbackSlug = "recording"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	// <scheme>://host/storage/v1/object/<kind>/<bucket>/
	publicPrefix = regexp.MustCompile(`(?i)^https?://[^/]+/storage/v1/object/[^/]+/[^/]+/`)
)

// Slugify folds a title into a lowercase, dash-separated object name.
func Slugify(title string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(stripMarks, title)
	if err != nil {
		folded = title
	}

	slug := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")

	if r := []rune(slug); len(r) > maxSlugRunes {
		slug = string(r[:maxSlugRunes])
	}

	if slug == "" {
		return fallbackSlug
	}

	return slug
}

// ExtensionFor maps a mime type to the file extension used in object paths.
func ExtensionFor(mimeType string) string {
	mt := strings.ToLower(mimeType)

	switch {
	case strings.Contains(mt, "ogg"):
		return "ogg"
	case strings.Contains(mt, "mpeg"), strings.Contains(mt, "mp3"):
		return "mp3"
	case strings.Contains(mt, "wav"):
		return "wav"
	case strings.Contains(mt, "m4a"), strings.Contains(mt, "mp4"):
		return "m4a"
	default:
		return "webm"
	}
}

// MimeForExtension is the inverse of ExtensionFor, used when serving objects.
func MimeForExtension(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "ogg":
		return "audio/ogg"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "m4a":
		return "audio/mp4"
	case "webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// ObjectPath builds "<folder>/<id>-<slug>.<ext>".
func ObjectPath(folder string, id int64, title, mimeType string) string {
	name := fmt.Sprintf("%d-%s.%s", id, Slugify(title), ExtensionFor(mimeType))

	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}

	return folder + "/" + name
}

// IsHTTPURL reports whether raw is an absolute http(s) URL.
func IsHTTPURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// NormalizePath turns a stored url column into a bucket-relative path. Public
// storage URLs lose their prefix, leading slashes go, and a bare file name
// is placed under the bucket folder. Other http(s) URLs are returned as is.
func NormalizePath(raw, bucket string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if loc := publicPrefix.FindStringIndex(raw); loc != nil {
		raw = raw[loc[1]:]
	} else if IsHTTPURL(raw) {
		return raw
	}

	raw = strings.TrimLeft(raw, "/")

	if !strings.Contains(raw, "/") && bucket != "" {
		raw = bucket + "/" + raw
	}

	return raw
}
