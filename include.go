package ipfls

import (
	"net/url"
	"slices"
	"strings"
)

// IncludeDirectives returns one #include line per procedure file among
// uris, as inserted when files are dropped into an editor. Files inside a
// "WaveMetrics Procedures" folder use the angle-bracket form.
func IncludeDirectives(uris []string) string {
	var b strings.Builder
	for _, raw := range uris {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !strings.HasSuffix(strings.ToLower(u.Path), ".ipf") {
			continue
		}
		parts := strings.Split(u.Path, "/")
		name := parts[len(parts)-1]
		name = name[:len(name)-len(".ipf")]
		if slices.Contains(parts, "WaveMetrics Procedures") {
			b.WriteString("#include <" + name + ">\n")
		} else {
			b.WriteString(`#include "` + name + "\"\n")
		}
	}
	return b.String()
}
