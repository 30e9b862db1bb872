package cli

import (
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/texmtlx/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsDirs(t *testing.T) {
	dirs, err := absDirs([]string{"tex", "/job/tex/../udim"})
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	wd, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(wd, "tex")), dirs[0])
	assert.Equal(t, "/job/udim", dirs[1])
}

func TestRenderReport(t *testing.T) {
	tasks := service.NewConversionTasks([]string{"/tex/a_Albedo.png", "/tex/a_Rough.png"}, ".tx")
	report := &service.ConversionReport{
		Succeeded: 1,
		Failed:    1,
		Tasks:     tasks,
		Results: map[string]service.Outcome{
			"/tex/a_Albedo.png": {Succeeded: true},
			"/tex/a_Rough.png":  {Succeeded: false},
		},
	}

	tests := []struct {
		name    string
		report  *service.ConversionReport
		aborted bool
		want    []string
	}{
		{"failures", report, false, []string{"Completed with failures", "Converted: 1", "Failed:    1", "/tex/a_Rough.png"}},
		{"aborted", report, true, []string{"Conversion aborted"}},
		{"clean", &service.ConversionReport{Succeeded: 2}, false, []string{"✓ Completed", "Converted: 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderReport(defaultTheme, tt.report, tt.aborted)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestAuxiliary(t *testing.T) {
	assert.Equal(t, "(normalmap.in)", auxiliary("normal"))
	assert.Equal(t, "-", auxiliary("color"))
}
