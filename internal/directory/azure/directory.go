// Package azure implements the resource directory over Azure Resource Manager.
// Scopes are subscription ids.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

func init() {
	directory.Register("azure", func(_ context.Context, cfg *config.Config) (directory.Directory, error) {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure credential: %w", err)
		}
		defaultSub := cfg.Azure.DefaultSubscription
		if defaultSub == "" {
			defaultSub = os.Getenv("AZURE_SUBSCRIPTION_ID")
		}
		return New(defaultSub, NewClientFactory(cred)), nil
	})
}

// NewClientFactory returns a factory building real ARM clients.
func NewClientFactory(cred azcore.TokenCredential) ClientFactory {
	return func(subscriptionID string) (*Clients, error) {
		f, err := armresources.NewClientFactory(subscriptionID, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create arm clients: %w", err)
		}
		return &Clients{
			Resources: f.NewClient(),
			Groups:    f.NewResourceGroupsClient(),
			Providers: f.NewProvidersClient(),
		}, nil
	}
}

// Directory implements directory.Directory over ARM.
type Directory struct {
	defaultSubscription string
	factory             ClientFactory

	mu      sync.Mutex
	clients map[string]*Clients
}

// New creates an ARM directory. Clients are built lazily per subscription.
func New(defaultSubscription string, factory ClientFactory) *Directory {
	return &Directory{
		defaultSubscription: defaultSubscription,
		factory:             factory,
		clients:             make(map[string]*Clients),
	}
}

// Name returns the directory identifier.
func (d *Directory) Name() string {
	return "azure"
}

func (d *Directory) clientsFor(scope string) (*Clients, error) {
	sub := scope
	if sub == "" {
		sub = d.defaultSubscription
	}
	if sub == "" {
		return nil, fmt.Errorf("no subscription: scope empty and no default subscription configured")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[sub]; ok {
		return c, nil
	}
	c, err := d.factory(sub)
	if err != nil {
		return nil, err
	}
	d.clients[sub] = c
	return c, nil
}

// tagFilter builds the ARM $filter for an exact tag match.
func tagFilter(tag resource.Tag) string {
	return fmt.Sprintf("tagName eq '%s' and tagValue eq '%s'", quote(tag.Key), quote(tag.Value))
}

// quote escapes single quotes for OData string literals.
func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ListByTag returns resources in the subscription carrying tag.
func (d *Directory) ListByTag(ctx context.Context, scope string, tag resource.Tag) ([]resource.Resource, error) {
	c, err := d.clientsFor(scope)
	if err != nil {
		return nil, err
	}

	var resources []resource.Resource
	pager := c.Resources.NewListPager(&armresources.ClientListOptions{Filter: to.Ptr(tagFilter(tag))})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources by tag %s: %w", tag, err)
		}
		for _, r := range page.Value {
			if r != nil {
				resources = append(resources, convertResource(r, scope))
			}
		}
	}

	log.Debug().Str("scope", scope).Str("tag", tag.String()).Int("count", len(resources)).Msg("listed resources by tag")
	return resources, nil
}

// ListGroupsByTag lists every resource group and keeps the ones carrying tag.
func (d *Directory) ListGroupsByTag(ctx context.Context, scope string, tag resource.Tag) ([]resource.Group, error) {
	c, err := d.clientsFor(scope)
	if err != nil {
		return nil, err
	}

	var groups []resource.Group
	pager := c.Groups.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resource groups: %w", err)
		}
		for _, g := range page.Value {
			if g == nil {
				continue
			}
			grp := resource.Group{
				Name:  str(g.Name),
				Scope: scope,
				Tags:  convertTags(g.Tags),
			}
			if grp.HasTag(tag) {
				groups = append(groups, grp)
			}
		}
	}
	return groups, nil
}

// ListByGroup returns every resource in a resource group.
func (d *Directory) ListByGroup(ctx context.Context, scope, group string) ([]resource.Resource, error) {
	c, err := d.clientsFor(scope)
	if err != nil {
		return nil, err
	}

	var resources []resource.Resource
	pager := c.Resources.NewListByResourceGroupPager(group, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources in group %s: %w", group, err)
		}
		for _, r := range page.Value {
			if r != nil {
				resources = append(resources, convertResource(r, scope))
			}
		}
	}
	return resources, nil
}

// SchemaVersions returns api-versions per resource type of a provider namespace.
func (d *Directory) SchemaVersions(ctx context.Context, scope, namespace string) (map[string][]string, error) {
	c, err := d.clientsFor(scope)
	if err != nil {
		return nil, err
	}

	resp, err := c.Providers.Get(ctx, namespace, nil)
	if err != nil {
		return nil, fmt.Errorf("get provider %s: %w", namespace, err)
	}

	out := make(map[string][]string, len(resp.ResourceTypes))
	for _, rt := range resp.ResourceTypes {
		if rt == nil || rt.ResourceType == nil {
			continue
		}
		versions := make([]string, 0, len(rt.APIVersions))
		for _, v := range rt.APIVersions {
			if v != nil {
				versions = append(versions, *v)
			}
		}
		out[*rt.ResourceType] = versions
	}
	return out, nil
}

// GetByID fetches a resource at an api-version and converts it to a metadata tree.
// The subscription embedded in the id picks the clients.
func (d *Directory) GetByID(ctx context.Context, id, version string) (metadata.Node, error) {
	c, err := d.clientsFor(subscriptionOf(id))
	if err != nil {
		return nil, err
	}

	resp, err := c.Resources.GetByID(ctx, id, version, nil)
	if err != nil {
		return nil, fmt.Errorf("get resource %s: %w", id, err)
	}

	raw, err := json.Marshal(resp.GenericResource)
	if err != nil {
		return nil, fmt.Errorf("encode resource %s: %w", id, err)
	}
	return metadata.FromJSON(raw)
}

// subscriptionOf extracts the subscription id from an ARM id, or "".
func subscriptionOf(id string) string {
	parts := strings.Split(strings.TrimPrefix(id, "/"), "/")
	if len(parts) >= 2 && strings.EqualFold(parts[0], "subscriptions") {
		return parts[1]
	}
	return ""
}

func convertResource(r *armresources.GenericResourceExpanded, scope string) resource.Resource {
	return resource.Resource{
		ID:       str(r.ID),
		Name:     str(r.Name),
		Type:     str(r.Type),
		Location: str(r.Location),
		Tags:     convertTags(r.Tags),
		Scope:    scope,
	}
}

func convertTags(tags map[string]*string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = str(v)
	}
	return out
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
