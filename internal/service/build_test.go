package service

import (
	"context"
	"sync"
	"testing"

	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/metrics"
	"github.com/raphaelgruber/texmtlx/internal/models"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/raphaelgruber/texmtlx/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLibrary = "/stage/materiallibrary"

func buildSets() map[string]*models.MaterialTextureSet {
	tires := models.NewMaterialTextureSet("tires")
	tires.UDIM = true
	tires.Textures[taxonomy.RoleColor] = []string{"/job/tex/tires_Albedo_1001.tif"}
	tires.Textures[taxonomy.RoleRoughness] = []string{"/job/tex/tires_Rough_1001.tif"}

	rims := models.NewMaterialTextureSet("rims")
	rims.Textures[taxonomy.RoleMetal] = []string{"/job/tex/rims_Metal.png"}
	rims.Textures[taxonomy.RoleNormal] = []string{"/job/tex/rims_Normal_bad.png"}

	return map[string]*models.MaterialTextureSet{"tires": tires, "rims": rims}
}

// recorder collects material events.
type recorder struct {
	mu     sync.Mutex
	stages map[string][]events.Stage
}

func (r *recorder) sink() events.Sink {
	r.stages = make(map[string][]events.Stage)
	return events.Funcs{OnMaterial: func(e events.MaterialEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stages[e.Material] = append(r.stages[e.Material], e.Stage)
	}}
}

func TestBuildAll(t *testing.T) {
	mem := sink.NewMemory(testLibrary)
	rec := &recorder{}
	m := metrics.NewCollector()
	svc := NewBuildService(taxonomy.Default(), mem, nil, rec.sink(), m)

	res, err := svc.Build(context.Background(), buildSets(), BuildOptions{Library: testLibrary, JobRoot: "/job"})
	require.NoError(t, err)

	assert.Equal(t, []string{"rims", "tires"}, res.Selected)
	assert.Equal(t, []string{"rims", "tires"}, res.Created)
	assert.Zero(t, res.Failed)
	assert.Nil(t, res.Conversion)
	assert.Equal(t, []string{"rims", "tires"}, mem.Materials(testLibrary))

	img, ok := mem.Node(sink.Handle(testLibrary + "/tires/color"))
	require.True(t, ok)
	assert.Equal(t, "$JOB/tex/tires_Albedo_<UDIM>.tif", img.Params["file"])

	assert.Equal(t, []events.Stage{events.StageSynthesized, events.StageMaterialized}, rec.stages["tires"])
	snap := m.Snapshot()
	require.NotNil(t, snap.Materialize)
	assert.Equal(t, int64(2), snap.Materialize.Count)
}

func TestBuildSelectedWithConversion(t *testing.T) {
	mem := sink.NewMemory(testLibrary)
	conv := &fakeConverter{}
	svc := NewBuildService(taxonomy.Default(), mem, conv, events.Nop{}, nil)

	res, err := svc.Build(context.Background(), buildSets(), BuildOptions{
		Materials:      []string{"rims", "ghost", "rims"},
		Library:        testLibrary,
		ConvertToCache: true,
		Workers:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rims"}, res.Selected)
	assert.Equal(t, []string{"rims"}, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"ghost: unknown material"}, res.Errors)

	require.NotNil(t, res.Conversion)
	assert.Equal(t, 2, res.Conversion.Total(), "only the selected material is converted")
	assert.Equal(t, 1, res.Conversion.Failed)
	assert.Equal(t, int32(2), conv.calls.Load())

	// The failed conversion still points at the expected cache file.
	nrm, ok := mem.Node(sink.Handle(testLibrary + "/rims/normal"))
	require.True(t, ok)
	assert.Equal(t, "/job/tex/rims_Normal_bad.tx", nrm.Params["file"])
	img, ok := mem.Node(sink.Handle(testLibrary + "/rims/metal"))
	require.True(t, ok)
	assert.Equal(t, "/job/tex/rims_Metal.tx", img.Params["file"])
}

func TestBuildWithoutConverter(t *testing.T) {
	svc := NewBuildService(taxonomy.Default(), sink.NewMemory(testLibrary), nil, events.Nop{}, nil)
	_, err := svc.Build(context.Background(), buildSets(), BuildOptions{Library: testLibrary, ConvertToCache: true})
	require.ErrorIs(t, err, ErrNoConverter)
}

func TestBuildContinuesAfterSinkFailure(t *testing.T) {
	mem := sink.NewMemory(testLibrary)
	mem.SetLocked(testLibrary, true)
	rec := &recorder{}
	svc := NewBuildService(taxonomy.Default(), mem, nil, rec.sink(), nil)

	res, err := svc.Build(context.Background(), buildSets(), BuildOptions{Library: testLibrary})
	require.NoError(t, err)

	assert.Empty(t, res.Created)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, res.Graphs, 2, "graphs are synthesized before the sink rejects them")
	assert.Equal(t, []events.Stage{events.StageSynthesized, events.StageFailed}, rec.stages["rims"])
}

func TestBuildDryRun(t *testing.T) {
	mem := sink.NewMemory(testLibrary)
	svc := NewBuildService(taxonomy.Default(), mem, nil, events.Nop{}, nil)

	res, err := svc.Build(context.Background(), buildSets(), BuildOptions{Library: testLibrary, DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, res.Created)
	assert.Len(t, res.Graphs, 2)
	assert.Zero(t, mem.Len())
}

func TestBuildReusesConvertedBatch(t *testing.T) {
	mem := sink.NewMemory(testLibrary)
	svc := NewBuildService(taxonomy.Default(), mem, nil, events.Nop{}, nil)
	sets := buildSets()

	tasks := TasksForSets(sets, []string{"tires"}, "")
	conv := &fakeConverter{}
	report := NewConversionPipeline(conv, events.Nop{}, nil).Convert(context.Background(), tasks, 2)

	res, err := svc.Build(context.Background(), sets, BuildOptions{
		Materials:      []string{"tires"},
		Library:        testLibrary,
		ConvertToCache: true,
		Converted:      report,
	})
	require.NoError(t, err)
	assert.Same(t, report, res.Conversion)
	assert.Equal(t, []string{"tires"}, res.Created)

	img, ok := mem.Node(sink.Handle(testLibrary + "/tires/color"))
	require.True(t, ok)
	assert.Equal(t, "/job/tex/tires_Albedo_<UDIM>.tx", img.Params["file"])
}
