package ipfls

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI converts a filesystem path to a file:// URI. Relative paths are
// made absolute first.
func PathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + escapePath(p)
}

// NormalizeURI re-encodes the path of a file:// URI the way editors do, so
// that "a&b.ipf" and "a%26b.ipf" name the same resource. Other URIs are
// returned unchanged.
func NormalizeURI(uri string) string {
	if uriScheme(uri) != "file" {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return "file://" + u.Host + escapePath(u.Path)
}

// escapePath percent-encodes everything but unreserved characters and
// slashes.
func escapePath(p string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		if unreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return c == '-' || c == '.' || c == '_' || c == '~'
}

// URIToPath converts a file:// URI to a filesystem path. ok is false for
// other schemes.
func URIToPath(uri string) (path string, ok bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

func uriScheme(uri string) string {
	if i := strings.Index(uri, ":"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return ""
}

// ignoredURI reports documents that are never indexed, such as git diff
// views.
func ignoredURI(uri string) bool {
	return uriScheme(uri) == "git"
}

// underDir reports whether uri is dir itself or lies beneath it.
func underDir(uri, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	return uri == dir || strings.HasPrefix(uri, dir+"/")
}
