package graph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
)

// StandardSurfaceInputs are the inputs of the standard_surface shader that
// a role may target.
var StandardSurfaceInputs = []string{
	"base", "base_color", "diffuse_roughness", "metalness",
	"specular", "specular_color", "specular_roughness", "specular_IOR",
	"specular_anisotropy", "specular_rotation",
	"transmission", "transmission_color", "transmission_depth",
	"subsurface", "subsurface_color", "subsurface_radius", "subsurface_scale",
	"sheen", "sheen_color", "sheen_roughness",
	"coat", "coat_color", "coat_roughness", "coat_normal",
	"thin_film_thickness", "emission", "emission_color",
	"opacity", "thin_walled", "normal", "tangent",
}

// Shader inputs and auxiliary slots the engine wires by name.
const (
	inputNormal       = "normal"
	inputSubsurface   = "subsurface"
	inputDisplacement = "displacement"
	inputTexcoord     = "texcoord"
	inputIn           = "in"
	inputIn1          = "in1"
	inputHeight       = "height"
	inputScale        = "scale"
	inputRotate       = "rotate"
	inputOffset       = "offset"
)

// Colorspace names written to image nodes.
const (
	ColorSpaceSRGB      = "srgb_texture"
	ColorSpaceSRGBCache = "srgb_tx"
	ColorSpaceRaw       = "raw"
)

// Options control path rewriting during synthesis.
type Options struct {
	ConvertToCache bool   // image paths point at converted cache files
	CacheExt       string // defaults to ".tx"
	JobRoot        string // prefix replaced by JobToken
	JobToken       string // defaults to "$JOB"
}

// Engine builds MaterialGraphs. It holds no per-material state and is safe
// for concurrent use.
type Engine struct {
	tax  *taxonomy.Taxonomy
	opts Options
}

// NewEngine creates an engine over tax.
func NewEngine(tax *taxonomy.Taxonomy, opts Options) *Engine {
	if opts.CacheExt == "" {
		opts.CacheExt = ".tx"
	}
	if opts.JobToken == "" {
		opts.JobToken = DefaultJobToken
	}
	return &Engine{tax: tax, opts: opts}
}

// builder accumulates one synthesis and keeps the first error.
type builder struct {
	g   *MaterialGraph
	err error
}

func (b *builder) node(name string, kind NodeKind, typ string) *Node {
	if b.err != nil {
		return &Node{Name: name, Kind: kind, Type: typ}
	}
	n, err := b.g.AddNode(name, kind, typ)
	if err != nil {
		b.err = err
		return &Node{Name: name, Kind: kind, Type: typ}
	}
	return n
}

func (b *builder) connect(from *Node, to *Node, input string) {
	if b.err != nil {
		return
	}
	b.err = b.g.Connect(from.Name, OutputSlot, to.Name, input)
}

// Synthesize builds the shader graph for set.
func (e *Engine) Synthesize(set *models.MaterialTextureSet) (*MaterialGraph, error) {
	roles := set.Roles(e.tax)
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySet, set.Name)
	}

	mat := set.Name
	b := &builder{g: NewMaterialGraph(set.DisplayName(), mat)}

	shader := b.node(mat+"_mtlxSurface", KindShaderRoot, TypeStandardSurface)
	disp := b.node(mat+"_mtlxDisp", KindDisplacementRoot, TypeDisplacement)

	surfaceOut := b.node("surface_output", KindOutputConnector, TypeSubnetConnector)
	surfaceOut.Set("connectorkind", "output")
	surfaceOut.Set("parmname", "surface")
	surfaceOut.Set("parmlabel", "Surface")
	surfaceOut.Set("parmtype", "surface")
	b.connect(shader, surfaceOut, inputIn)

	dispOut := b.node("displacement_output", KindOutputConnector, TypeSubnetConnector)
	dispOut.Set("connectorkind", "output")
	dispOut.Set("parmname", "displacement")
	dispOut.Set("parmlabel", "Displacement")
	dispOut.Set("parmtype", "displacement")
	b.connect(disp, dispOut, inputIn)

	var place2d *Node
	if !set.UDIM {
		place2d = e.placement(b, mat)
	}

	for _, role := range roles {
		if role == taxonomy.RoleBump || role == taxonomy.RoleNormal {
			continue
		}
		spec, ok := e.tax.Spec(role)
		if !ok {
			continue
		}
		img := e.image(b, set, role, spec, place2d)
		if err := e.wire(b, role, spec, img, shader, disp); err != nil {
			return nil, err
		}
	}

	e.bumpNormal(b, set, shader, place2d)

	if b.err != nil {
		return nil, fmt.Errorf("synthesize %s: %w", mat, b.err)
	}
	return b.g, nil
}

// placement adds the texcoord/place2d subgraph shared by all image nodes.
func (e *Engine) placement(b *builder, mat string) *Node {
	texcoord := b.node(mat+"_textcoord", KindTexCoord, TypeTexCoord)
	texcoord.Set("signature", "vector2")

	place := b.node(mat+"_place2d", KindPlace2D, TypePlace2D)
	b.connect(texcoord, place, inputTexcoord)

	scale := b.node(mat+"_scale", KindConstant, TypeConstant)
	scale.Set("signature", "vector2")
	scale.Set("value", []float64{1, 1})
	b.connect(scale, place, inputScale)

	rotate := b.node(mat+"_rotation", KindConstant, TypeConstant)
	rotate.Set("signature", "float")
	rotate.Set("value", 0.0)
	b.connect(rotate, place, inputRotate)

	offset := b.node(mat+"_offset", KindConstant, TypeConstant)
	offset.Set("signature", "vector2")
	offset.Set("value", []float64{0, 0})
	b.connect(offset, place, inputOffset)

	return place
}

// image adds the image node for role, named after the role.
func (e *Engine) image(b *builder, set *models.MaterialTextureSet, role taxonomy.Role, spec taxonomy.RoleSpec, place2d *Node) *Node {
	typ := TypeTiledImage
	if set.UDIM {
		typ = TypeImage
	}
	img := b.node(string(role), KindImage, typ)

	src, _ := set.Representative(role)
	img.Set("file", e.ResolvePath(src, set.UDIM))

	signature := spec.Signature
	colorSpace := spec.ColorSpace
	if role == taxonomy.RoleColor || role == taxonomy.RoleSubsurface {
		signature = taxonomy.SignatureColor3
		colorSpace = taxonomy.ColorSpaceColor
	}
	img.Set("signature", string(signature))
	cs := ColorSpaceRaw
	if colorSpace == taxonomy.ColorSpaceColor {
		cs = ColorSpaceSRGB
		if e.opts.ConvertToCache {
			cs = ColorSpaceSRGBCache
		}
	}
	img.Set("filecolorspace", cs)

	if place2d != nil {
		b.connect(place2d, img, inputTexcoord)
	}
	return img
}

// wire connects an image node into the shader according to its role.
func (e *Engine) wire(b *builder, role taxonomy.Role, spec taxonomy.RoleSpec, img, shader, disp *Node) error {
	target := spec.ShaderInput
	if target != "" && !slices.Contains(StandardSurfaceInputs, target) {
		return fmt.Errorf("%w: role %s targets %q", ErrUnknownShaderInput, role, target)
	}

	switch role {
	case taxonomy.RoleColor:
		cc := rangeNode(b, string(role)+"_CC", taxonomy.SignatureColor3, 0, 1)
		b.connect(img, cc, inputIn)
		e.toShader(b, cc, shader, target)

	case taxonomy.RoleSubsurface:
		cc := rangeNode(b, string(role)+"_CC", taxonomy.SignatureColor3, 0, 1)
		b.connect(img, cc, inputIn)
		e.toShader(b, cc, shader, target)
		shader.Set(inputSubsurface, 1.0)

	case taxonomy.RoleRoughness:
		adj := rangeNode(b, string(role)+"_ADJ", taxonomy.SignatureFloat, 0, 1)
		b.connect(img, adj, inputIn)
		e.toShader(b, adj, shader, target)

	case taxonomy.RoleGlossiness:
		adj := rangeNode(b, string(role)+"_ADJ", taxonomy.SignatureFloat, 1, 0)
		b.connect(img, adj, inputIn)
		e.toShader(b, adj, shader, target)

	case taxonomy.RoleAmbientOcclusion:
		mult := b.node(string(role)+"_MULT", KindMultiply, TypeMultiply)
		mult.Set("signature", string(taxonomy.SignatureFloat))
		b.connect(img, mult, inputIn1)

	case taxonomy.RoleExtra:
		split := b.node(string(role)+"_SPLIT", KindSeparateChannels, TypeSeparate3C)
		b.connect(img, split, inputIn)

	case taxonomy.RoleDisplacement:
		b.connect(img, disp, inputDisplacement)

	default:
		e.toShader(b, img, shader, target)
	}
	return nil
}

// toShader feeds from into a shader input unless that input is already
// taken, which happens when roughness and glossiness maps both exist. The
// higher priority role keeps the input.
func (e *Engine) toShader(b *builder, from, shader *Node, input string) {
	if input == "" || b.err != nil {
		return
	}
	if prev, taken := b.g.Source(shader.Name, input); taken {
		slog.Warn("shader input already wired, leaving node unconnected",
			"material", b.g.Material, "input", input, "kept", prev.From, "skipped", from.Name)
		return
	}
	b.connect(from, shader, input)
}

func rangeNode(b *builder, name string, sig taxonomy.Signature, outLow, outHigh float64) *Node {
	n := b.node(name, KindRangeAdjust, TypeRange)
	n.Set("signature", string(sig))
	n.Set("inlow", 0.0)
	n.Set("inhigh", 1.0)
	n.Set("outlow", outLow)
	n.Set("outhigh", outHigh)
	return n
}

// bumpNormal wires the bump and normal maps. With both present the normal
// map feeds the bump node's normal slot and only the bump node reaches the
// shader.
func (e *Engine) bumpNormal(b *builder, set *models.MaterialTextureSet, shader, place2d *Node) {
	hasBump := set.Has(taxonomy.RoleBump)
	hasNormal := set.Has(taxonomy.RoleNormal)
	if !hasBump && !hasNormal {
		return
	}

	var bump, normalMap *Node

	if hasBump {
		spec, _ := e.tax.Spec(taxonomy.RoleBump)
		img := e.image(b, set, taxonomy.RoleBump, spec, place2d)
		img.Set("signature", string(taxonomy.SignatureFloat))
		img.Set("filecolorspace", ColorSpaceRaw)
		bump = b.node("mtlxBump", KindBump, TypeBump)
		b.connect(img, bump, inputHeight)
	}

	if hasNormal {
		spec, _ := e.tax.Spec(taxonomy.RoleNormal)
		img := e.image(b, set, taxonomy.RoleNormal, spec, place2d)
		img.Set("signature", string(taxonomy.SignatureVector3))
		img.Set("filecolorspace", ColorSpaceRaw)
		normalMap = b.node("mtlxNormal", KindNormalMap, TypeNormalMap)
		b.connect(img, normalMap, inputIn)
	}

	switch {
	case bump != nil && normalMap != nil:
		b.connect(normalMap, bump, inputNormal)
		b.connect(bump, shader, inputNormal)
	case bump != nil:
		b.connect(bump, shader, inputNormal)
	default:
		b.connect(normalMap, shader, inputNormal)
	}
}
