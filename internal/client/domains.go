package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// Static errors for err113 compliance.
var (
	ErrObjectIDRequired = errors.New("object id is required")
)

// DomainsClient implements npapi.DomainsClient.
type DomainsClient struct {
	client *Client
}

// NewDomainsClient creates a new domains client.
func NewDomainsClient(client *Client) *DomainsClient {
	return &DomainsClient{client: client}
}

// List implements npapi.DomainsClient.List.
func (c *DomainsClient) List(ctx context.Context, params *npapi.QueryParams) (*npapi.DomainList, error) {
	resp, err := c.client.Get(ctx, constants.InfraDomainsPath, params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}

	var list npapi.DomainList

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing domain list: %w", err)
	}

	return &list, nil
}

// Get implements npapi.DomainsClient.Get.
func (c *DomainsClient) Get(ctx context.Context, domainID string) (*npapi.Domain, error) {
	if domainID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, constants.InfraDomainsPath+"/"+domainID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting domain %q: %w", domainID, err)
	}

	var domain npapi.Domain

	err = json.Unmarshal(resp.Body, &domain)
	if err != nil {
		return nil, fmt.Errorf("parsing domain: %w", err)
	}

	return &domain, nil
}

// Create implements npapi.DomainsClient.Create. Creation is an idempotent
// PUT to the object path, keyed by the caller-chosen ID.
func (c *DomainsClient) Create(ctx context.Context, domain *npapi.Domain) (*npapi.Domain, error) {
	if domain == nil || domain.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, constants.InfraDomainsPath+"/"+domain.ID, domain)
	if err != nil {
		return nil, fmt.Errorf("creating domain %q: %w", domain.ID, err)
	}

	var created npapi.Domain

	err = json.Unmarshal(resp.Body, &created)
	if err != nil {
		return nil, fmt.Errorf("parsing domain: %w", err)
	}

	return &created, nil
}

// Delete implements npapi.DomainsClient.Delete.
func (c *DomainsClient) Delete(ctx context.Context, domainID string) error {
	if domainID == "" {
		return ErrObjectIDRequired
	}

	_, err := c.client.Delete(ctx, constants.InfraDomainsPath+"/"+domainID)
	if err != nil {
		return fmt.Errorf("deleting domain %q: %w", domainID, err)
	}

	return nil
}
