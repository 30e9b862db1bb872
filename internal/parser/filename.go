// Package parser infers material membership and texture role from image
// file names.
package parser

import (
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

var (
	// UDIMPattern finds a 4-digit tile number. Tiles are not range-checked.
	UDIMPattern = regexp.MustCompile(`(?:_)?(\d{4})`)

	// resolutionPattern finds an underscore-prefixed size tag such as _2K.
	resolutionPattern = regexp.MustCompile(`_(\d+[Kk])(?:[_.]|$)`)
)

// Classify parses a texture file path. It returns false when the file has a
// disallowed extension, no underscore, or no descriptor matching any role.
// The first underscore segment is the material name and is never scanned.
func Classify(tax *taxonomy.Taxonomy, p string) (models.ClassifiedTexture, bool) {
	p = strings.ReplaceAll(filepath.ToSlash(p), `\`, "/")
	name := path.Base(p)
	ext := path.Ext(name)
	if !tax.AllowsExtension(ext) {
		return models.ClassifiedTexture{}, false
	}

	stem := strings.TrimSuffix(name, ext)
	material, rest, found := strings.Cut(stem, "_")
	if !found || material == "" {
		return models.ClassifiedTexture{}, false
	}

	role, frag, ok := MatchRole(tax, strings.Split(rest, "_"))
	if !ok {
		return models.ClassifiedTexture{}, false
	}

	return models.ClassifiedTexture{
		Path:       p,
		FileName:   name,
		Dir:        path.Dir(p),
		Material:   material,
		Role:       role,
		Fragment:   frag,
		UDIM:       HasUDIM(stem),
		Resolution: Resolution(name),
	}, true
}

// MatchRole returns the highest-priority role with a fragment matching any
// descriptor. Fragments shorter than the taxonomy's substring threshold must
// equal a whole word of the descriptor; longer ones match as substrings.
func MatchRole(tax *taxonomy.Taxonomy, descriptors []string) (taxonomy.Role, string, bool) {
	type descriptor struct {
		lower string
		words []string
	}
	ds := make([]descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d == "" {
			continue
		}
		ds = append(ds, descriptor{lower: strings.ToLower(d), words: SplitWords(d)})
	}

	minLen := tax.MinSubstringLen()
	for _, rs := range tax.Roles() {
		for _, frag := range rs.Fragments {
			for _, d := range ds {
				if len(frag) >= minLen {
					if strings.Contains(d.lower, frag) {
						return rs.Role, frag, true
					}
				} else if slices.Contains(d.words, frag) {
					return rs.Role, frag, true
				}
			}
		}
	}
	return "", "", false
}

// HasUDIM reports whether name carries a 4-digit tile number.
func HasUDIM(name string) bool {
	return UDIMPattern.MatchString(name)
}

// Resolution returns the size tag of name ("2K", "4k") or "".
func Resolution(name string) string {
	m := resolutionPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// SplitWords lowercases s and splits it at separators, camelCase humps,
// acronym ends and letter/digit transitions. "SSSColor2K" becomes
// [sss color 2 k].
func SplitWords(s string) []string {
	rs := []rune(s)
	var words []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := rs[i-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) &&
				i+1 < len(rs) && unicode.IsLower(rs[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
