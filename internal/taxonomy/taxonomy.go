// Package taxonomy defines the texture role table used to classify files and
// wire them into a shader graph.
package taxonomy

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is the physical meaning of a texture within a material.
type Role string

const (
	RoleColor            Role = "color"
	RoleMetal            Role = "metal"
	RoleSpecular         Role = "specular"
	RoleRoughness        Role = "roughness"
	RoleGlossiness       Role = "glossiness"
	RoleTransmission     Role = "transmission"
	RoleEmission         Role = "emission"
	RoleAlpha            Role = "alpha"
	RoleAmbientOcclusion Role = "occlusion"
	RoleBump             Role = "bump"
	RoleDisplacement     Role = "displacement"
	RoleExtra            Role = "extra"
	RoleNormal           Role = "normal"
	RoleSubsurface       Role = "subsurface"
)

// AllRoles lists every known role in declaration order.
var AllRoles = []Role{
	RoleColor, RoleMetal, RoleSpecular, RoleRoughness, RoleGlossiness,
	RoleTransmission, RoleEmission, RoleAlpha, RoleAmbientOcclusion,
	RoleBump, RoleDisplacement, RoleExtra, RoleNormal, RoleSubsurface,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

// ColorSpace tells the image reader how to interpret pixel values.
type ColorSpace string

const (
	ColorSpaceColor ColorSpace = "color"
	ColorSpaceRaw   ColorSpace = "raw"
)

// Signature is the value type an image or adjustment node produces.
type Signature string

const (
	SignatureColor3  Signature = "color3"
	SignatureFloat   Signature = "float"
	SignatureVector3 Signature = "vector3"
)

// RoleSpec describes how one role is detected and wired.
type RoleSpec struct {
	Role        Role       `yaml:"role"`
	Fragments   []string   `yaml:"fragments"`
	ShaderInput string     `yaml:"shader_input,omitempty"`
	ColorSpace  ColorSpace `yaml:"color_space"`
	Signature   Signature  `yaml:"signature"`
}

// DefaultMinSubstringLen is the shortest fragment allowed to match inside a
// longer word. Shorter fragments must equal a whole word.
const DefaultMinSubstringLen = 5

// DefaultExtensions is the image extension allow-list.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".exr", ".tga", ".targa", ".hdr"}

// Taxonomy is the immutable role table. Roles are held in priority order:
// the first role whose fragment matches a descriptor wins.
type Taxonomy struct {
	roles           []RoleSpec
	byRole          map[Role]RoleSpec
	extensions      map[string]struct{}
	minSubstringLen int
}

// Default returns the built-in role table.
func Default() *Taxonomy {
	t, err := New(defaultRoles(), DefaultExtensions, DefaultMinSubstringLen)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: invalid default table: %v", err))
	}
	return t
}

func defaultRoles() []RoleSpec {
	return []RoleSpec{
		{RoleSubsurface, []string{"translucency", "subsurface", "sss"}, "subsurface_color", ColorSpaceColor, SignatureColor3},
		{RoleEmission, []string{"emission", "emissive", "emit", "emm"}, "emission", ColorSpaceRaw, SignatureFloat},
		{RoleSpecular, []string{"specularity", "specular", "spec", "spc"}, "specular", ColorSpaceRaw, SignatureFloat},
		{RoleColor, []string{"diffuse", "diff", "albedo", "alb", "base", "col", "color", "basecolor"}, "base_color", ColorSpaceColor, SignatureColor3},
		{RoleMetal, []string{"metallic", "metalness", "metal", "mtl", "met"}, "metalness", ColorSpaceRaw, SignatureFloat},
		{RoleRoughness, []string{"roughness", "rough", "rgh"}, "specular_roughness", ColorSpaceRaw, SignatureFloat},
		{RoleGlossiness, []string{"glossiness", "glossy", "gloss"}, "specular_roughness", ColorSpaceRaw, SignatureFloat},
		{RoleTransmission, []string{"transmission", "transparency", "trans"}, "transmission", ColorSpaceRaw, SignatureFloat},
		{RoleAlpha, []string{"alpha", "opacity", "opac"}, "opacity", ColorSpaceRaw, SignatureFloat},
		{RoleAmbientOcclusion, []string{"ambientocclusion", "occlusion", "cavity", "ao"}, "", ColorSpaceRaw, SignatureFloat},
		{RoleDisplacement, []string{"displacement", "displace", "heightmap", "disp", "dsp"}, "", ColorSpaceRaw, SignatureFloat},
		{RoleBump, []string{"bump", "bmp", "height"}, "", ColorSpaceRaw, SignatureFloat},
		{RoleExtra, []string{"mask", "user"}, "", ColorSpaceRaw, SignatureColor3},
		{RoleNormal, []string{"normal", "nrml", "norm", "nrm", "nor"}, "", ColorSpaceRaw, SignatureVector3},
	}
}

// New validates and freezes a role table. Fragments and extensions are
// lowercased; extensions gain a leading dot if missing.
func New(roles []RoleSpec, extensions []string, minSubstringLen int) (*Taxonomy, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("taxonomy: no roles")
	}
	if minSubstringLen <= 0 {
		minSubstringLen = DefaultMinSubstringLen
	}

	t := &Taxonomy{
		roles:           make([]RoleSpec, 0, len(roles)),
		byRole:          make(map[Role]RoleSpec, len(roles)),
		extensions:      make(map[string]struct{}, len(extensions)),
		minSubstringLen: minSubstringLen,
	}

	for _, rs := range roles {
		if !rs.Role.Valid() {
			return nil, fmt.Errorf("taxonomy: unknown role %q", rs.Role)
		}
		if _, dup := t.byRole[rs.Role]; dup {
			return nil, fmt.Errorf("taxonomy: role %q listed twice", rs.Role)
		}
		if len(rs.Fragments) == 0 {
			return nil, fmt.Errorf("taxonomy: role %q has no fragments", rs.Role)
		}
		frags := make([]string, 0, len(rs.Fragments))
		for _, f := range rs.Fragments {
			f = strings.ToLower(strings.TrimSpace(f))
			if f != "" {
				frags = append(frags, f)
			}
		}
		rs.Fragments = frags
		if rs.ColorSpace == "" {
			rs.ColorSpace = ColorSpaceRaw
		}
		if rs.Signature == "" {
			rs.Signature = SignatureFloat
		}
		t.roles = append(t.roles, rs)
		t.byRole[rs.Role] = rs
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		t.extensions[ext] = struct{}{}
	}

	return t, nil
}

// Roles returns the role table in priority order.
func (t *Taxonomy) Roles() []RoleSpec {
	out := make([]RoleSpec, len(t.roles))
	for i, rs := range t.roles {
		rs.Fragments = slices.Clone(rs.Fragments)
		out[i] = rs
	}
	return out
}

// Spec returns the entry for a role.
func (t *Taxonomy) Spec(r Role) (RoleSpec, bool) {
	rs, ok := t.byRole[r]
	return rs, ok
}

// Priority returns the position of r in the priority order, or -1.
func (t *Taxonomy) Priority(r Role) int {
	for i, rs := range t.roles {
		if rs.Role == r {
			return i
		}
	}
	return -1
}

// AllowsExtension reports whether ext (with leading dot, any case) is an image
// extension the scanner accepts.
func (t *Taxonomy) AllowsExtension(ext string) bool {
	_, ok := t.extensions[strings.ToLower(ext)]
	return ok
}

// Extensions returns the allow-list, sorted.
func (t *Taxonomy) Extensions() []string {
	out := make([]string, 0, len(t.extensions))
	for ext := range t.extensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// MinSubstringLen returns the substring-match threshold for fragments.
func (t *Taxonomy) MinSubstringLen() int {
	return t.minSubstringLen
}

// fileFormat is the YAML layout of a taxonomy override file.
type fileFormat struct {
	MinSubstringLen int        `yaml:"min_substring_len"`
	Extensions      []string   `yaml:"extensions"`
	Roles           []RoleSpec `yaml:"roles"`
}

// Parse builds a taxonomy from YAML. Omitted sections fall back to the
// built-in defaults.
func Parse(data []byte) (*Taxonomy, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("taxonomy: parse yaml: %w", err)
	}
	roles := f.Roles
	if len(roles) == 0 {
		roles = defaultRoles()
	}
	return New(roles, f.Extensions, f.MinSubstringLen)
}

// LoadFile reads a YAML taxonomy override. An empty path yields Default().
func LoadFile(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: read %s: %w", path, err)
	}
	return Parse(data)
}

// Marshal renders the taxonomy in the override-file format.
func (t *Taxonomy) Marshal() ([]byte, error) {
	return yaml.Marshal(fileFormat{
		MinSubstringLen: t.minSubstringLen,
		Extensions:      t.Extensions(),
		Roles:           t.Roles(),
	})
}
