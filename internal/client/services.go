package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// ServicesClient implements npapi.ServicesClient.
type ServicesClient struct {
	client *Client
}

// NewServicesClient creates a new services client.
func NewServicesClient(client *Client) *ServicesClient {
	return &ServicesClient{client: client}
}

// List implements npapi.ServicesClient.List.
func (c *ServicesClient) List(ctx context.Context, params *npapi.QueryParams) (*npapi.ServiceList, error) {
	resp, err := c.client.Get(ctx, constants.InfraServicesPath, params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}

	var list npapi.ServiceList

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing service list: %w", err)
	}

	return &list, nil
}

// Get implements npapi.ServicesClient.Get.
func (c *ServicesClient) Get(ctx context.Context, serviceID string) (*npapi.Service, error) {
	if serviceID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, constants.InfraServicesPath+"/"+serviceID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting service %q: %w", serviceID, err)
	}

	var service npapi.Service

	err = json.Unmarshal(resp.Body, &service)
	if err != nil {
		return nil, fmt.Errorf("parsing service: %w", err)
	}

	return &service, nil
}

// Create implements npapi.ServicesClient.Create. Creation is an idempotent
// PUT to the object path, keyed by the caller-chosen ID.
func (c *ServicesClient) Create(ctx context.Context, service *npapi.Service) (*npapi.Service, error) {
	if service == nil || service.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, constants.InfraServicesPath+"/"+service.ID, service)
	if err != nil {
		return nil, fmt.Errorf("creating service %q: %w", service.ID, err)
	}

	var created npapi.Service

	err = json.Unmarshal(resp.Body, &created)
	if err != nil {
		return nil, fmt.Errorf("parsing service: %w", err)
	}

	return &created, nil
}

// Update implements npapi.ServicesClient.Update.
func (c *ServicesClient) Update(ctx context.Context, service *npapi.Service) (*npapi.Service, error) {
	if service == nil || service.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, constants.InfraServicesPath+"/"+service.ID, service)
	if err != nil {
		return nil, fmt.Errorf("updating service %q: %w", service.ID, err)
	}

	var updated npapi.Service

	err = json.Unmarshal(resp.Body, &updated)
	if err != nil {
		return nil, fmt.Errorf("parsing service: %w", err)
	}

	return &updated, nil
}

// Delete implements npapi.ServicesClient.Delete.
func (c *ServicesClient) Delete(ctx context.Context, serviceID string) error {
	if serviceID == "" {
		return ErrObjectIDRequired
	}

	_, err := c.client.Delete(ctx, constants.InfraServicesPath+"/"+serviceID)
	if err != nil {
		return fmt.Errorf("deleting service %q: %w", serviceID, err)
	}

	return nil
}
