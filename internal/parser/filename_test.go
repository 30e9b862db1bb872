package parser

import (
	"slices"
	"testing"

	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRoles(t *testing.T) {
	tax := taxonomy.Default()
	tests := []struct {
		file string
		want taxonomy.Role
	}{
		{"tires_Albedo_1001.tif", taxonomy.RoleColor},
		{"tires_BaseColor.png", taxonomy.RoleColor},
		{"tires_Alb.png", taxonomy.RoleColor},
		{"tires_Diffuse.jpg", taxonomy.RoleColor},
		{"tires_Rough_1001.tif", taxonomy.RoleRoughness},
		{"tires_Roughness.exr", taxonomy.RoleRoughness},
		{"tires_Normal_1001.tif", taxonomy.RoleNormal},
		{"tires_nrm.png", taxonomy.RoleNormal},
		{"metalRims_Metal.png", taxonomy.RoleMetal},
		{"rims_Metallic.png", taxonomy.RoleMetal},
		{"rims_Spec.png", taxonomy.RoleSpecular},
		{"rims_Specular.png", taxonomy.RoleSpecular},
		{"rims_Gloss.png", taxonomy.RoleGlossiness},
		{"glass_Transparency.png", taxonomy.RoleTransmission},
		{"skin_Translucency.png", taxonomy.RoleSubsurface},
		{"lamp_Emissive.png", taxonomy.RoleEmission},
		{"leaf_Opacity.png", taxonomy.RoleAlpha},
		{"rock_AO.png", taxonomy.RoleAmbientOcclusion},
		{"rock_Cavity.png", taxonomy.RoleAmbientOcclusion},
		{"rock_Height.png", taxonomy.RoleBump},
		{"rock_Heightmap.png", taxonomy.RoleDisplacement},
		{"rock_Displacement.exr", taxonomy.RoleDisplacement},
		{"rock_Bump.png", taxonomy.RoleBump},
		{"rock_Mask.png", taxonomy.RoleExtra},
		{"rock_8K_Albedo.jpg", taxonomy.RoleColor},
		{"rock_Diffuse.targa", taxonomy.RoleColor},
		{"rock_Rough.TGA", taxonomy.RoleRoughness},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := Classify(tax, "/tex/"+tt.file)
			require.True(t, ok, "Classify(%q) not classified", tt.file)
			if got.Role != tt.want {
				t.Errorf("Classify(%q).Role = %q, want %q", tt.file, got.Role, tt.want)
			}
		})
	}
}

func TestClassifyRejects(t *testing.T) {
	tax := taxonomy.Default()
	tests := []string{
		"noUnderscore.png",
		"_Albedo.png",
		"tires_Albedo.psd",
		"tires_Albedo.tx",
		"tires_Specialize.png",
		"tires_1001.png",
		"albedo_misc.png", // material segment is never scanned
	}
	for _, file := range tests {
		if got, ok := Classify(tax, "/tex/"+file); ok {
			t.Errorf("Classify(%q) = %+v, want not classifiable", file, got)
		}
	}
}

func TestClassifyFields(t *testing.T) {
	tax := taxonomy.Default()

	got, ok := Classify(tax, "/proj/tex/tires_Albedo_2K_1001.TIF")
	require.True(t, ok)
	assert.Equal(t, "/proj/tex/tires_Albedo_2K_1001.TIF", got.Path)
	assert.Equal(t, "tires_Albedo_2K_1001.TIF", got.FileName)
	assert.Equal(t, "/proj/tex", got.Dir)
	assert.Equal(t, "tires", got.Material)
	assert.Equal(t, "albedo", got.Fragment)
	assert.True(t, got.UDIM)
	assert.Equal(t, "2K", got.Resolution)

	got, ok = Classify(tax, "/proj/tex/tires_Rough.png")
	require.True(t, ok)
	assert.False(t, got.UDIM)
	assert.Empty(t, got.Resolution)
}

func TestMatchRolePriority(t *testing.T) {
	tax := taxonomy.Default()
	tests := []struct {
		descriptors []string
		want        taxonomy.Role
	}{
		// first match in priority order, not token order
		{[]string{"Normal", "Albedo"}, taxonomy.RoleColor},
		{[]string{"EmissiveColor"}, taxonomy.RoleEmission},
		{[]string{"SSSColor"}, taxonomy.RoleSubsurface},
		{[]string{"MetalRough"}, taxonomy.RoleMetal},
	}
	for _, tt := range tests {
		got, _, ok := MatchRole(tax, tt.descriptors)
		if !ok || got != tt.want {
			t.Errorf("MatchRole(%q) = %q, %v, want %q", tt.descriptors, got, ok, tt.want)
		}
	}
}

func TestHasUDIM(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"tires_Albedo_1001", true},
		{"tires_Albedo.1001", true},
		{"tires_Albedo_9999", true}, // no range check
		{"tires_Albedo_101", false},
		{"tires_Albedo", false},
	}
	for _, tt := range tests {
		if got := HasUDIM(tt.name); got != tt.want {
			t.Errorf("HasUDIM(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolution(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"rock_Albedo_2K.png", "2K"},
		{"rock_4k_Albedo.png", "4k"},
		{"rock_Albedo_16K_1001.exr", "16K"},
		{"rock_Albedo.png", ""},
		{"rock_2Kitchen_Albedo.png", ""},
		{"rock2K_Albedo.png", ""},
	}
	for _, tt := range tests {
		if got := Resolution(tt.name); got != tt.want {
			t.Errorf("Resolution(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"BaseColor", []string{"base", "color"}},
		{"metalRims", []string{"metal", "rims"}},
		{"SSSColor", []string{"sss", "color"}},
		{"Rough2", []string{"rough", "2"}},
		{"AO", []string{"ao"}},
		{"normal-dx", []string{"normal", "dx"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := SplitWords(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("SplitWords(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
