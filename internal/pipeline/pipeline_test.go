package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory/directorytest"
	"github.com/yairfalse/carta/internal/directory/snapshot"
	"github.com/yairfalse/carta/internal/export"
	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/internal/llm"
	"github.com/yairfalse/carta/internal/llm/llmtest"
	"github.com/yairfalse/carta/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workload.TagValue = "Production"
	cfg.Directory.Provider = "snapshot"
	cfg.Output.Dir = t.TempDir()
	cfg.Refine.Concurrency = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func testDirectory(t *testing.T) *snapshot.Directory {
	t.Helper()
	d, err := snapshot.Load("../directory/snapshot/testdata/workload.yaml")
	require.NoError(t, err)
	return d
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExecute_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	gen := &llmtest.Recorder{}

	res, err := New(cfg, Deps{Directory: testDirectory(t), Generator: gen}).Execute(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Resources)
	assert.Equal(t, 1, res.Gaps)
	assert.Equal(t, 2, res.Documented)

	// overview + 2 resources x (initial draft + 3 rounds x 2)
	assert.Equal(t, 15, gen.Calls())

	rows := readCSV(t, res.TablePath)
	require.Len(t, rows, 4)
	assert.Equal(t, export.IdentityColumns, rows[0][:len(export.IdentityColumns)])
	assert.Equal(t, []string{"shop", "sessions", "orders"}, []string{rows[1][0], rows[2][0], rows[3][0]})
	for _, cell := range rows[2][len(export.IdentityColumns):] {
		assert.Equal(t, export.Sentinel, cell)
	}
	assert.Contains(t, rows[0], "properties_administrators_login")
	assert.Contains(t, rows[0], "properties_hostNames_0")

	doc, err := os.ReadFile(res.DocumentPath)
	require.NoError(t, err)
	html := string(doc)
	overview := strings.Index(html, "Workload Overview")
	shop := strings.Index(html, "<h2>shop</h2>")
	orders := strings.Index(html, "<h2>orders</h2>")
	require.True(t, overview >= 0)
	assert.True(t, shop > overview)
	assert.True(t, orders > shop)
	assert.NotContains(t, html, "<h2>sessions</h2>")

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the two artifacts remain")
}

func TestExecute_ExistingArtifactSkips(t *testing.T) {
	cfg := testConfig(t)
	table := cfg.Output.TablePath()
	require.NoError(t, os.WriteFile(table, []byte("previous"), 0o600))

	dir := &directorytest.Fake{}
	gen := &llmtest.Recorder{}

	res, err := New(cfg, Deps{Directory: dir, Generator: gen}).Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{table}, res.Existing)

	assert.Zero(t, dir.TotalCalls())
	assert.Zero(t, gen.Calls())

	got, err := os.ReadFile(table)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
	_, err = os.Stat(cfg.Output.DocumentPath())
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_DiscoveryFailure(t *testing.T) {
	cfg := testConfig(t)
	dir := &directorytest.Fake{Errors: map[string]error{"ListByTag": errors.New("unauthorized")}}

	_, err := New(cfg, Deps{Directory: dir, Generator: &llmtest.Recorder{}}).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.Discovery))

	_, statErr := os.Stat(cfg.Output.TablePath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_GenerationFailure(t *testing.T) {
	cfg := testConfig(t)
	gen := &llmtest.Recorder{Respond: llmtest.FailOn(1, errors.New("quota exceeded"))}

	_, err := New(cfg, Deps{Directory: testDirectory(t), Generator: gen}).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.Generation))

	// the table is written before narration starts
	_, statErr := os.Stat(cfg.Output.TablePath())
	assert.NoError(t, statErr)
	_, statErr = os.Stat(cfg.Output.DocumentPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecute_RefineFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Refine.Concurrency = 1
	gen := &llmtest.Recorder{Respond: func(n int, req llm.Request) (string, error) {
		if n > 1 && strings.Contains(req.System, "reviewing") {
			return "", errors.New("timeout")
		}
		return "ok", nil
	}}

	_, err := New(cfg, Deps{Directory: testDirectory(t), Generator: gen}).Execute(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.Generation))
	assert.Contains(t, err.Error(), "refine round 1 review")
}

func TestExecute_MarkdownZeroRounds(t *testing.T) {
	cfg := testConfig(t)
	zero := 0
	cfg.Refine.Rounds = &zero
	cfg.Output.Format = "markdown"
	cfg.Output.Document = "workload.md"

	gen := &llmtest.Recorder{Respond: func(_ int, req llm.Request) (string, error) {
		if strings.Contains(req.User, "list of resources") {
			return "OVERVIEW", nil
		}
		return "DOC", nil
	}}

	res, err := New(cfg, Deps{Directory: testDirectory(t), Generator: gen}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Calls())

	doc, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "workload.md"))
	require.NoError(t, err)
	assert.Equal(t,
		"# Workload Overview\n\nOVERVIEW\n\n# Workload Details\n\n## shop\n\nDOC\n\n## orders\n\nDOC\n\n",
		string(doc))
	assert.Equal(t, 2, res.Documented)
}

func TestExecute_UnvalidatedConcurrencyAndZeroTemperature(t *testing.T) {
	cfg := config.Default()
	cfg.Workload.TagValue = "Production"
	cfg.Output.Dir = t.TempDir()
	cfg.Refine.Concurrency = 0
	cfg.Resolver.Concurrency = 0
	greedy := 0.0
	cfg.LLM.Temperature = &greedy

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gen := &llmtest.Recorder{}
	res, err := New(cfg, Deps{Directory: testDirectory(t), Generator: gen}).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documented)

	require.NotEmpty(t, gen.Requests())
	for _, req := range gen.Requests() {
		assert.Zero(t, req.Temperature)
	}
}

type recordingPublisher struct {
	paths []string
}

func (p *recordingPublisher) Publish(_ context.Context, path string) error {
	p.paths = append(p.paths, path)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestExecute_Publishes(t *testing.T) {
	cfg := testConfig(t)
	pub := &recordingPublisher{}

	res, err := New(cfg, Deps{Directory: testDirectory(t), Generator: &llmtest.Recorder{}, Publisher: pub}).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.TablePath, res.DocumentPath}, pub.paths)
}

func TestExecute_Telemetry(t *testing.T) {
	cfg := testConfig(t)
	tel, err := telemetry.NewProvider(context.Background(), cfg.OTEL)
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	_, err = New(cfg, Deps{Directory: testDirectory(t), Generator: &llmtest.Recorder{}, Telemetry: tel}).
		Execute(context.Background())
	require.NoError(t, err)

	families, err := tel.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "carta_generation_calls")
	assert.Contains(t, joined, "carta_resolution_gaps")
	assert.Contains(t, joined, "carta_resources_discovered")
}

func TestDiscover(t *testing.T) {
	cfg := testConfig(t)
	got, err := Discover(context.Background(), cfg, testDirectory(t))
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"shop", "sessions", "orders"}, names)
}

func TestNew_UniqueRunIDs(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, Deps{Directory: &directorytest.Fake{}, Generator: &llmtest.Recorder{}})
	b := New(cfg, Deps{Directory: &directorytest.Fake{}, Generator: &llmtest.Recorder{}})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDiscover_ExcludeTypes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workload.ExcludeTypes = []string{"Microsoft.Cache/redis"}

	got, err := Discover(context.Background(), cfg, testDirectory(t))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "shop", got[0].Name)
	assert.Equal(t, "orders", got[1].Name)
}
