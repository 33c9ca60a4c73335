// Package resource defines the unified resource model for carta.
package resource

import "strings"

// Resource is one tagged cloud resource as reported by a directory.
// Identity is the ID; two descriptors with the same ID are the same resource
// regardless of their other fields.
type Resource struct {
	ID       string            `json:"id" yaml:"id"`             // Opaque provider id (e.g. an ARM id)
	Name     string            `json:"name" yaml:"name"`         // Human-readable name
	Type     string            `json:"type" yaml:"type"`         // Namespaced type (e.g. "Microsoft.Compute/virtualMachines")
	Location string            `json:"location" yaml:"location"` // Region or location
	Tags     map[string]string `json:"tags" yaml:"tags"`         // Provider tags
	Scope    string            `json:"scope" yaml:"-"`           // Account scope that discovered it
}

// Group is a resource group handle used during discovery.
type Group struct {
	Name  string            `json:"name" yaml:"name"`
	Scope string            `json:"scope" yaml:"-"`
	Tags  map[string]string `json:"tags" yaml:"tags"`
}

// Tag is an exact key/value tag query.
type Tag struct {
	Key   string
	Value string
}

// String renders the tag as key=value.
func (t Tag) String() string {
	return t.Key + "=" + t.Value
}

// TypeSeparator splits a resource type into namespace and kind.
const TypeSeparator = "/"

// SplitType splits the type on the first separator into (namespace, kind).
// ok is false when the type carries no separator.
func (r Resource) SplitType() (namespace, kind string, ok bool) {
	return strings.Cut(r.Type, TypeSeparator)
}

// ResourceGroup returns the resource group segment of an ARM-style id,
// or "" if the id has none.
func (r Resource) ResourceGroup() string {
	parts := strings.Split(r.ID, "/")
	for i := 0; i < len(parts)-1; i++ {
		if strings.EqualFold(parts[i], "resourceGroups") {
			return parts[i+1]
		}
	}
	return ""
}

// HasTag reports whether tags contain the exact key/value pair.
func HasTag(tags map[string]string, tag Tag) bool {
	if tags == nil {
		return false
	}
	v, ok := tags[tag.Key]
	return ok && v == tag.Value
}

// HasTag reports whether the resource carries the tag.
func (r Resource) HasTag(tag Tag) bool {
	return HasTag(r.Tags, tag)
}

// HasTag reports whether the group carries the tag.
func (g Group) HasTag(tag Tag) bool {
	return HasTag(g.Tags, tag)
}
