package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/carta/pkg/resource"
)

func TestKeepType_NoExclusions(t *testing.T) {
	f := New(nil, nil, nil)
	assert.True(t, f.KeepType("Microsoft.Web/sites"))
	assert.True(t, f.IsEmpty())
}

func TestKeepType_CaseInsensitive(t *testing.T) {
	f := New([]string{"Microsoft.Insights/components"}, nil, nil)
	assert.True(t, f.KeepType("Microsoft.Web/sites"))
	assert.False(t, f.KeepType("microsoft.insights/Components"))
	assert.False(t, f.IsEmpty())
}

func TestKeep(t *testing.T) {
	f := New(
		[]string{"Microsoft.Network/networkWatchers"},
		map[string]string{"env": "prod"},
		map[string]string{"carta-skip": "true"},
	)

	tests := []struct {
		name string
		r    resource.Resource
		want bool
	}{
		{
			name: "all filters pass",
			r:    resource.Resource{Type: "Microsoft.Web/sites", Tags: map[string]string{"env": "prod"}},
			want: true,
		},
		{
			name: "excluded type",
			r:    resource.Resource{Type: "Microsoft.Network/networkWatchers", Tags: map[string]string{"env": "prod"}},
			want: false,
		},
		{
			name: "missing required tag",
			r:    resource.Resource{Type: "Microsoft.Web/sites", Tags: map[string]string{"env": "dev"}},
			want: false,
		},
		{
			name: "no tags at all",
			r:    resource.Resource{Type: "Microsoft.Web/sites"},
			want: false,
		},
		{
			name: "excluded tag",
			r: resource.Resource{Type: "Microsoft.Web/sites", Tags: map[string]string{
				"env": "prod", "carta-skip": "true",
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Keep(tt.r))
		})
	}
}

func TestKeep_ZeroFilterKeepsEverything(t *testing.T) {
	f := New(nil, nil, nil)
	assert.True(t, f.Keep(resource.Resource{Type: "anything"}))
}
