// Package narrative writes the prose parts of the report: the workload
// overview and the first documentation draft of each resource.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/internal/llm"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

// Personas.
const (
	OverviewPersona = "You are an expert cloud architect and documentation writer. " +
		"Your job is to create a clear and detailed overview of a cloud workload."
	DocumentPersona = "You are an expert cloud architect and documentation writer."
)

// Author issues generation calls with fixed sampling parameters.
type Author struct {
	Gen         llm.Generator
	Temperature float64
	MaxTokens   int
}

// Overview describes the workload from its resource list.
func (a *Author) Overview(ctx context.Context, resources []resource.Resource) (string, error) {
	out, err := a.Gen.Generate(ctx, llm.Request{
		System:      OverviewPersona,
		User:        OverviewPrompt(resources),
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})
	if err != nil {
		return "", failure.New(failure.Generation, "workload overview", err)
	}
	return strings.TrimSpace(out), nil
}

// Document writes the initial documentation of one resource from its record.
func (a *Author) Document(ctx context.Context, r resource.Resource, record metadata.Node) (string, error) {
	prompt, err := DocumentPrompt(record)
	if err != nil {
		return "", failure.New(failure.Serialization, "render record of "+r.Name, err)
	}
	out, err := a.Gen.Generate(ctx, llm.Request{
		System:      DocumentPersona,
		User:        prompt,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})
	if err != nil {
		return "", failure.New(failure.Generation, "document "+r.Name, err)
	}
	return strings.TrimSpace(out), nil
}

// OverviewPrompt lists one line per resource.
func OverviewPrompt(resources []resource.Resource) string {
	var b strings.Builder
	b.WriteString("Here is the list of resources in the workload:\n")
	for _, r := range resources {
		fmt.Fprintf(&b, "Name: %s, Type: %s, Location: %s, Resource Group: %s\n",
			r.Name, r.Type, r.Location, r.ResourceGroup())
	}
	b.WriteString("Generate a detailed and human-readable overview.")
	return b.String()
}

// DocumentPrompt embeds the record as indented JSON.
func DocumentPrompt(record metadata.Node) (string, error) {
	raw, err := metadata.MarshalIndent(record)
	if err != nil {
		return "", err
	}
	return "Here is the metadata for a cloud resource:\n" + string(raw) +
		"\nPlease generate a detailed and human-readable documentation.", nil
}
