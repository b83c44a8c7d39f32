package config

import (
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions maps editor language identifiers to file extensions.
var DefaultExtensions = map[string][]string{
	"go":          {".go"},
	"python":      {".py", ".pyi"},
	"typescript":  {".ts", ".tsx"},
	"javascript":  {".js", ".jsx", ".mjs", ".cjs"},
	"java":        {".java"},
	"rust":        {".rs"},
	"ruby":        {".rb"},
	"c":           {".c", ".h"},
	"cpp":         {".cc", ".cpp", ".cxx", ".hpp"},
	"csharp":      {".cs"},
	"kotlin":      {".kt", ".kts"},
	"php":         {".php"},
	"shellscript": {".sh", ".bash"},
	"sql":         {".sql"},
	"yaml":        {".yml", ".yaml"},
	"json":        {".json"},
	"markdown":    {".md"},
}

// ParseExtensions reads the compact "lang=.ext,.ext;lang=.ext" form used in
// environment variables.
func ParseExtensions(s string) map[string][]string {
	out := map[string][]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		lang, exts, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(lang) == "" {
			continue
		}
		for _, e := range strings.Split(exts, ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			out[strings.TrimSpace(lang)] = append(out[strings.TrimSpace(lang)], strings.ToLower(e))
		}
	}
	return out
}

// ExtensionIndex maps a lower-case extension to a language id. Overrides win
// over the defaults.
type ExtensionIndex map[string]string

func NewExtensionIndex(overrides map[string][]string) ExtensionIndex {
	idx := ExtensionIndex{}
	add := func(m map[string][]string) {
		langs := make([]string, 0, len(m))
		for l := range m {
			langs = append(langs, l)
		}
		sort.Strings(langs)
		for _, l := range langs {
			for _, e := range m[l] {
				idx[strings.ToLower(e)] = l
			}
		}
	}
	add(DefaultExtensions)
	add(overrides)
	return idx
}

// LanguageFor returns the language id for path, or "" when unknown.
func (idx ExtensionIndex) LanguageFor(path string) string {
	return idx[strings.ToLower(filepath.Ext(path))]
}
