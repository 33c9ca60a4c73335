package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

// ResourcesAPI defines the ARM resource operations used by the directory.
type ResourcesAPI interface {
	NewListPager(options *armresources.ClientListOptions) *runtime.Pager[armresources.ClientListResponse]
	NewListByResourceGroupPager(resourceGroupName string, options *armresources.ClientListByResourceGroupOptions) *runtime.Pager[armresources.ClientListByResourceGroupResponse]
	GetByID(ctx context.Context, resourceID string, apiVersion string, options *armresources.ClientGetByIDOptions) (armresources.ClientGetByIDResponse, error)
}

// GroupsAPI defines the resource group operations used by the directory.
type GroupsAPI interface {
	NewListPager(options *armresources.ResourceGroupsClientListOptions) *runtime.Pager[armresources.ResourceGroupsClientListResponse]
}

// ProvidersAPI defines the resource provider operations used by the directory.
type ProvidersAPI interface {
	Get(ctx context.Context, resourceProviderNamespace string, options *armresources.ProvidersClientGetOptions) (armresources.ProvidersClientGetResponse, error)
}

// Clients bundles the ARM clients for one subscription.
type Clients struct {
	Resources ResourcesAPI
	Groups    GroupsAPI
	Providers ProvidersAPI
}

// ClientFactory builds the clients for a subscription.
type ClientFactory func(subscriptionID string) (*Clients, error)
