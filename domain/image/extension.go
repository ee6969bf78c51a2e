package image

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true, ".ico": true,
	".tif": true, ".tiff": true, ".avif": true, ".heic": true,
}

// ExtensionFromURL derives the stored file extension from the path of the
// source URL. Query and fragment never contribute.
func ExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultExtension
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if imageExtensions[ext] {
		return ext
	}
	return DefaultExtension
}

// IsValidIdentifier reports whether id has the shape of an allocated
// identifier: fixed length, ASCII letters and digits only.
func IsValidIdentifier(id string) bool {
	if len(id) != IdentifierLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
