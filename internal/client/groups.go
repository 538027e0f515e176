package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// GroupsClient implements npapi.GroupsClient.
type GroupsClient struct {
	client *Client
}

// NewGroupsClient creates a new groups client.
func NewGroupsClient(client *Client) *GroupsClient {
	return &GroupsClient{client: client}
}

func groupsPath(domainID string) string {
	return constants.InfraDomainsPath + "/" + domainID + "/groups"
}

// List implements npapi.GroupsClient.List.
func (c *GroupsClient) List(ctx context.Context, domainID string, params *npapi.QueryParams) (*npapi.GroupList, error) {
	if domainID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, groupsPath(domainID), params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing groups in domain %q: %w", domainID, err)
	}

	var list npapi.GroupList

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing group list: %w", err)
	}

	return &list, nil
}

// Get implements npapi.GroupsClient.Get.
func (c *GroupsClient) Get(ctx context.Context, domainID, groupID string) (*npapi.Group, error) {
	if domainID == "" || groupID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, groupsPath(domainID)+"/"+groupID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting group %q: %w", groupID, err)
	}

	var group npapi.Group

	err = json.Unmarshal(resp.Body, &group)
	if err != nil {
		return nil, fmt.Errorf("parsing group: %w", err)
	}

	return &group, nil
}

// Create implements npapi.GroupsClient.Create. Creation is an idempotent
// PUT to the object path, keyed by the caller-chosen ID.
func (c *GroupsClient) Create(ctx context.Context, domainID string, group *npapi.Group) (*npapi.Group, error) {
	if domainID == "" || group == nil || group.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, groupsPath(domainID)+"/"+group.ID, group)
	if err != nil {
		return nil, fmt.Errorf("creating group %q: %w", group.ID, err)
	}

	var created npapi.Group

	err = json.Unmarshal(resp.Body, &created)
	if err != nil {
		return nil, fmt.Errorf("parsing group: %w", err)
	}

	return &created, nil
}

// Update implements npapi.GroupsClient.Update. The group's Revision must
// match the backend's or the call fails with a 409.
func (c *GroupsClient) Update(ctx context.Context, domainID string, group *npapi.Group) (*npapi.Group, error) {
	if domainID == "" || group == nil || group.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, groupsPath(domainID)+"/"+group.ID, group)
	if err != nil {
		return nil, fmt.Errorf("updating group %q: %w", group.ID, err)
	}

	var updated npapi.Group

	err = json.Unmarshal(resp.Body, &updated)
	if err != nil {
		return nil, fmt.Errorf("parsing group: %w", err)
	}

	return &updated, nil
}

// Delete implements npapi.GroupsClient.Delete.
func (c *GroupsClient) Delete(ctx context.Context, domainID, groupID string) error {
	if domainID == "" || groupID == "" {
		return ErrObjectIDRequired
	}

	_, err := c.client.Delete(ctx, groupsPath(domainID)+"/"+groupID)
	if err != nil {
		return fmt.Errorf("deleting group %q: %w", groupID, err)
	}

	return nil
}
