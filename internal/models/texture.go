// Package models defines the data structures shared by the texmtlx packages.
package models

import (
	"path"
	"slices"

	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

// ClassifiedTexture is one image file with its inferred material and role.
type ClassifiedTexture struct {
	Path       string        `json:"path"` // forward-slash absolute path
	FileName   string        `json:"file_name"`
	Dir        string        `json:"dir"`
	Material   string        `json:"material"`
	Role       taxonomy.Role `json:"role"`
	Fragment   string        `json:"fragment"` // the fragment that matched
	UDIM       bool          `json:"udim"`
	Resolution string        `json:"resolution,omitempty"` // e.g. "2K"
}

// MaterialTextureSet groups every classified texture of one material.
type MaterialTextureSet struct {
	Name       string                     `json:"name"`
	Textures   map[taxonomy.Role][]string `json:"textures"` // role -> source paths, index 0 is authoritative
	UDIM       bool                       `json:"udim"`
	Resolution string                     `json:"resolution,omitempty"`
	Dirs       []string                   `json:"dirs"` // sorted source directories
	Dir        string                     `json:"dir"`  // last entry of Dirs

	resolutionFrom string // path that supplied Resolution
}

// NewMaterialTextureSet returns an empty set for name.
func NewMaterialTextureSet(name string) *MaterialTextureSet {
	return &MaterialTextureSet{
		Name:     name,
		Textures: make(map[taxonomy.Role][]string),
	}
}

// Has reports whether the set contains at least one file for role.
func (s *MaterialTextureSet) Has(role taxonomy.Role) bool {
	return len(s.Textures[role]) > 0
}

// Representative returns the first file for role.
func (s *MaterialTextureSet) Representative(role taxonomy.Role) (string, bool) {
	files := s.Textures[role]
	if len(files) == 0 {
		return "", false
	}
	return files[0], true
}

// Roles returns the roles present in the set, ordered by tax priority.
func (s *MaterialTextureSet) Roles(tax *taxonomy.Taxonomy) []taxonomy.Role {
	roles := make([]taxonomy.Role, 0, len(s.Textures))
	for r, files := range s.Textures {
		if len(files) > 0 {
			roles = append(roles, r)
		}
	}
	slices.SortFunc(roles, func(a, b taxonomy.Role) int {
		return tax.Priority(a) - tax.Priority(b)
	})
	return roles
}

// Files returns every source file in the set, sorted.
func (s *MaterialTextureSet) Files() []string {
	var out []string
	for _, files := range s.Textures {
		out = append(out, files...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// DisplayName is the name the synthesized material is created under.
func (s *MaterialTextureSet) DisplayName() string {
	if s.Resolution == "" {
		return s.Name
	}
	return s.Name + "_" + s.Resolution
}

// Add folds one classified texture into the set and keeps lists canonical.
func (s *MaterialTextureSet) Add(t ClassifiedTexture) {
	s.Textures[t.Role] = append(s.Textures[t.Role], t.Path)
	s.UDIM = s.UDIM || t.UDIM
	dir := t.Dir
	if dir == "" {
		dir = path.Dir(t.Path)
	}
	s.Dirs = append(s.Dirs, dir)
	s.Dir = dir
	s.offerResolution(t.Resolution, t.Path)
}

// offerResolution keeps the tag of the lowest path so the result does not
// depend on the order textures arrive in.
func (s *MaterialTextureSet) offerResolution(tag, from string) {
	if tag == "" {
		return
	}
	if s.Resolution == "" || from < s.resolutionFrom {
		s.Resolution = tag
		s.resolutionFrom = from
	}
}

// Merge unions other into s. Both sets must describe the same material.
func (s *MaterialTextureSet) Merge(other *MaterialTextureSet) {
	for r, files := range other.Textures {
		s.Textures[r] = append(s.Textures[r], files...)
	}
	s.UDIM = s.UDIM || other.UDIM
	s.Dirs = append(s.Dirs, other.Dirs...)
	from := other.resolutionFrom
	if from == "" {
		from = other.Dir
	}
	s.offerResolution(other.Resolution, from)
	s.Normalize()
}

// Normalize sorts and de-duplicates file and directory lists.
func (s *MaterialTextureSet) Normalize() {
	for r, files := range s.Textures {
		slices.Sort(files)
		s.Textures[r] = slices.Compact(files)
	}
	slices.Sort(s.Dirs)
	s.Dirs = slices.Compact(s.Dirs)
	if len(s.Dirs) > 0 {
		s.Dir = s.Dirs[len(s.Dirs)-1]
	}
}
