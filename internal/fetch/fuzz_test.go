package fetch

import (
	"path/filepath"
	"strings"
	"testing"
)

func FuzzEntryPath(f *testing.F) {
	for _, seed := range []string{"a.shp", "../x", "/etc/passwd", `..\..\x`, "a/./b/../c", "./"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, name string) {
		p, err := entryPath(name)
		if err != nil || p == "" {
			return
		}
		slash := filepath.ToSlash(p)
		if p == ".." || strings.HasPrefix(slash, "../") || filepath.IsAbs(p) || strings.HasPrefix(slash, "/") {
			t.Fatalf("entryPath(%q) = %q escapes the extraction directory", name, p)
		}
	})
}
