// Package filter narrows a workload's resources after discovery.
package filter

import (
	"strings"

	"github.com/yairfalse/carta/pkg/resource"
)

// Filter drops resources by type or tags. The zero filter keeps everything.
type Filter struct {
	excludeTypes map[string]bool
	requireTags  map[string]string
	excludeTags  map[string]string
}

// New creates a Filter. Types compare case-insensitively, like provider types.
func New(excludeTypes []string, requireTags, excludeTags map[string]string) *Filter {
	excludeMap := make(map[string]bool, len(excludeTypes))
	for _, t := range excludeTypes {
		excludeMap[strings.ToLower(t)] = true
	}

	return &Filter{
		excludeTypes: excludeMap,
		requireTags:  requireTags,
		excludeTags:  excludeTags,
	}
}

// KeepType reports whether resources of the type are kept.
func (f *Filter) KeepType(typ string) bool {
	return !f.excludeTypes[strings.ToLower(typ)]
}

// Keep reports whether the resource passes every filter.
func (f *Filter) Keep(r resource.Resource) bool {
	if !f.KeepType(r.Type) {
		return false
	}

	// every required tag must match
	for k, v := range f.requireTags {
		if !r.HasTag(resource.Tag{Key: k, Value: v}) {
			return false
		}
	}

	// any excluded tag drops it
	for k, v := range f.excludeTags {
		if r.HasTag(resource.Tag{Key: k, Value: v}) {
			return false
		}
	}

	return true
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.excludeTypes) == 0 && len(f.requireTags) == 0 && len(f.excludeTags) == 0
}
