// Package service provides the texmtlx operations: scanning texture folders,
// converting images to the texture cache, and building materials.
package service

import (
	"slices"
	"strings"

	"github.com/raphaelgruber/texmtlx/internal/models"
)

// BuildSets groups classified textures by material. Input order does not
// matter: textures are folded in path order and every list is kept sorted,
// so tile 1001 is the representative of a UDIM sequence.
func BuildSets(textures []models.ClassifiedTexture) map[string]*models.MaterialTextureSet {
	sorted := slices.Clone(textures)
	slices.SortFunc(sorted, func(a, b models.ClassifiedTexture) int {
		return strings.Compare(a.Path, b.Path)
	})

	sets := make(map[string]*models.MaterialTextureSet)
	for _, t := range sorted {
		set, ok := sets[t.Material]
		if !ok {
			set = models.NewMaterialTextureSet(t.Material)
			sets[t.Material] = set
		}
		set.Add(t)
	}
	for _, set := range sets {
		set.Normalize()
	}
	return sets
}

// MergeSets unions src into dst. Materials with the same name found in
// different directories become one set.
func MergeSets(dst, src map[string]*models.MaterialTextureSet) {
	for name, set := range src {
		existing, ok := dst[name]
		if !ok {
			existing = models.NewMaterialTextureSet(name)
			dst[name] = existing
		}
		existing.Merge(set)
	}
}

// SortedNames returns the material names of sets in lexical order.
func SortedNames(sets map[string]*models.MaterialTextureSet) []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
