package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yairfalse/carta/internal/directory/directorytest"
	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLatestVersion(t *testing.T) {
	v, ok := LatestVersion([]string{"2021-01-01", "2023-05-01", "2022-12-31"})
	require.True(t, ok)
	assert.Equal(t, "2023-05-01", v)

	v, ok = LatestVersion([]string{"2023-05-01", "2023-05-01-preview"})
	require.True(t, ok)
	assert.Equal(t, "2023-05-01-preview", v)

	_, ok = LatestVersion(nil)
	assert.False(t, ok)
}

func TestLatestVersion_DoesNotMutateInput(t *testing.T) {
	in := []string{"a", "c", "b"}
	_, _ = LatestVersion(in)
	assert.Equal(t, []string{"a", "c", "b"}, in)
}

func record(kv map[string]any) metadata.Node {
	n, err := metadata.FromValue(kv)
	if err != nil {
		panic(err)
	}
	return n
}

func webFake() *directorytest.Fake {
	return &directorytest.Fake{
		Schemas: map[string]map[string][]string{
			"Microsoft.Web": {"sites": {"2021-01-01", "2023-05-01", "2022-12-31"}},
			"Microsoft.Sql": {"Servers": {"2021-11-01"}},
		},
		Records: map[string]metadata.Node{
			"id-1": record(map[string]any{"sku": "P1"}),
			"id-2": record(map[string]any{"sku": "S0"}),
			"id-3": record(map[string]any{"sku": "B1"}),
		},
	}
}

func TestResolve_PicksLatestVersion(t *testing.T) {
	fake := webFake()
	rv := New(fake, 1)

	res, err := rv.Resolve(context.Background(), resource.Resource{ID: "id-1", Name: "web", Type: "Microsoft.Web/sites"})
	require.NoError(t, err)
	require.True(t, res.Resolved())
	assert.Equal(t, "2023-05-01", res.Version)
	assert.Equal(t, []string{"id-1@2023-05-01"}, fake.Fetched())
}

func TestResolve_KindCaseInsensitive(t *testing.T) {
	fake := webFake()
	fake.Records["sql"] = record(map[string]any{"v": "12.0"})

	res, err := New(fake, 1).Resolve(context.Background(), resource.Resource{ID: "sql", Type: "Microsoft.Sql/servers"})
	require.NoError(t, err)
	assert.Equal(t, "2021-11-01", res.Version)
}

func TestResolve_Gaps(t *testing.T) {
	tests := []struct {
		name     string
		resource resource.Resource
		setup    func(f *directorytest.Fake)
		wantErr  string
	}{
		{
			name:     "type without namespace",
			resource: resource.Resource{ID: "id-1", Type: "sites"},
			wantErr:  "no namespace",
		},
		{
			name:     "unknown kind",
			resource: resource.Resource{ID: "id-1", Type: "Microsoft.Web/serverFarms"},
			wantErr:  ErrNoVersion.Error(),
		},
		{
			name:     "version query fails",
			resource: resource.Resource{ID: "id-1", Type: "Microsoft.Web/sites"},
			setup:    func(f *directorytest.Fake) { f.Errors = map[string]error{"SchemaVersions": errors.New("boom")} },
			wantErr:  "boom",
		},
		{
			name:     "fetch fails",
			resource: resource.Resource{ID: "id-1", Type: "Microsoft.Web/sites"},
			setup:    func(f *directorytest.Fake) { f.FetchErrors = map[string]error{"id-1": errors.New("gone")} },
			wantErr:  "gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := webFake()
			if tt.setup != nil {
				tt.setup(fake)
			}
			var gaps int
			rv := New(fake, 1)
			rv.OnGap = func(resource.Resource, error) { gaps++ }

			res, err := rv.Resolve(context.Background(), tt.resource)
			require.NoError(t, err)
			assert.False(t, res.Resolved())
			assert.Nil(t, res.Record)
			assert.True(t, failure.IsKind(res.Gap, failure.ResolutionGap))
			assert.Contains(t, res.Gap.Error(), tt.wantErr)
			assert.Equal(t, 1, gaps)
		})
	}
}

func TestResolveAll_PartialKeepsAlignment(t *testing.T) {
	fake := webFake()
	delete(fake.Records, "id-2")

	resources := []resource.Resource{
		{ID: "id-1", Name: "one", Type: "Microsoft.Web/sites"},
		{ID: "id-2", Name: "two", Type: "Microsoft.Web/sites"},
		{ID: "id-3", Name: "three", Type: "Microsoft.Web/sites"},
	}

	out, err := New(fake, 4).ResolveAll(context.Background(), resources)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, r := range resources {
		assert.Equal(t, r.ID, out[i].Resource.ID)
	}
	assert.True(t, out[0].Resolved())
	assert.False(t, out[1].Resolved())
	assert.True(t, out[2].Resolved())
	assert.Equal(t, 1, Gaps(out))

	recs := Records(out)
	assert.NotNil(t, recs[0])
	assert.Nil(t, recs[1])
	assert.NotNil(t, recs[2])

	// one version query per resource
	assert.Equal(t, 3, fake.Calls("SchemaVersions"))
}

func TestResolveAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := webFake()
	fake.Errors = map[string]error{"SchemaVersions": context.Canceled}

	_, err := New(fake, 2).ResolveAll(ctx, []resource.Resource{{ID: "id-1", Type: "Microsoft.Web/sites"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolveAll_Empty(t *testing.T) {
	out, err := New(webFake(), 2).ResolveAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
