//go:build integration

// Package db provides integration tests for the SurrealDB material library.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/texmtlx/internal/graph"
	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testConfig Config
var testContainer testcontainers.Container

const testLibrary = "/stage/materiallibrary"

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testConfig = Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}
	testDB, err = NewClient(ctx, testConfig, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// freshLibrary wipes the database and registers the test library.
func freshLibrary(t *testing.T) *Library {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testDB.Wipe(ctx))
	lib := NewLibrary(testDB)
	require.NoError(t, lib.AddLibrary(ctx, testLibrary))
	return lib
}

func tiresGraph(t *testing.T) *graph.MaterialGraph {
	t.Helper()
	g := graph.NewMaterialGraph("tires", "tires")
	shader, err := g.AddNode("tires_mtlxSurface", graph.KindShaderRoot, graph.TypeStandardSurface)
	require.NoError(t, err)
	shader.Set("subsurface", 1.0)
	img, err := g.AddNode("color", graph.KindImage, graph.TypeImage)
	require.NoError(t, err)
	img.Set("file", "$JOB/tex/tires_Albedo.<UDIM>.tif")
	require.NoError(t, g.Connect("color", graph.OutputSlot, "tires_mtlxSurface", "base_color"))
	return g
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClientTables(t *testing.T) {
	tables, err := testDB.Tables(context.Background())
	require.NoError(t, err)
	for _, want := range schemaTables {
		assert.Contains(t, tables, want)
	}
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.InitSchema(context.Background()))
}

func TestOpenLibrary(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.Wipe(ctx))

	lib, err := OpenLibrary(ctx, testConfig, "/stage/opened/", nil)
	require.NoError(t, err)
	defer lib.Close(ctx)

	h, err := sink.Materialize(ctx, lib, "/stage/opened", tiresGraph(t))
	require.NoError(t, err)
	assert.Equal(t, sink.Handle("/stage/opened/tires"), h)

	_, err = OpenLibrary(ctx, Config{URL: testConfig.URL, Username: "root", Password: "wrong"}, "/stage/opened", nil)
	assert.Error(t, err)
}

// =============================================================================
// LIBRARY TESTS
// =============================================================================

func TestLibraryMaterialize(t *testing.T) {
	ctx := context.Background()
	lib := freshLibrary(t)

	h, err := sink.Materialize(ctx, lib, testLibrary, tiresGraph(t))
	require.NoError(t, err)
	assert.Equal(t, sink.Handle(testLibrary+"/tires"), h)

	subnet, err := lib.Node(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, graph.TypeSubnet, subnet.Type)
	assert.True(t, subnet.Material)
	assert.Equal(t, []sink.Handle{h.Child("tires_mtlxSurface"), h.Child("color")}, subnet.Children)

	img, err := lib.Node(ctx, h.Child("color"))
	require.NoError(t, err)
	assert.Equal(t, "$JOB/tex/tires_Albedo.<UDIM>.tif", img.Params["file"])
	assert.Equal(t, 3.0, img.X)

	conns, err := lib.Connections(ctx, h)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, sink.Connection{
		From: h.Child("color"), Output: "out", To: h.Child("tires_mtlxSurface"), Input: "base_color",
	}, conns[0])
}

func TestLibraryReplacesExisting(t *testing.T) {
	ctx := context.Background()
	lib := freshLibrary(t)

	_, err := sink.Materialize(ctx, lib, testLibrary, tiresGraph(t))
	require.NoError(t, err)
	h, err := sink.Materialize(ctx, lib, testLibrary, tiresGraph(t))
	require.NoError(t, err)

	names, err := lib.Materials(ctx, testLibrary)
	require.NoError(t, err)
	assert.Equal(t, []string{"tires"}, names)

	subnet, err := lib.Node(ctx, h)
	require.NoError(t, err)
	assert.Len(t, subnet.Children, 2, "destroy-then-recreate leaves no duplicates")

	conns, err := lib.Connections(ctx, h)
	require.NoError(t, err)
	assert.Len(t, conns, 1)
}

func TestLibraryLocked(t *testing.T) {
	ctx := context.Background()
	lib := freshLibrary(t)
	require.NoError(t, lib.SetLocked(ctx, testLibrary, true))

	_, err := sink.Materialize(ctx, lib, testLibrary, tiresGraph(t))
	require.ErrorIs(t, err, sink.ErrLibraryLocked)
}

func TestLibraryNotFound(t *testing.T) {
	ctx := context.Background()
	lib := freshLibrary(t)

	_, err := sink.Materialize(ctx, lib, "/stage/elsewhere", tiresGraph(t))
	require.ErrorIs(t, err, sink.ErrLibraryNotFound)
}
