package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netfabric-io/npapi/internal/constants"
	"github.com/netfabric-io/npapi/pkg/npapi"
)

// SecurityPoliciesClient implements npapi.SecurityPoliciesClient.
type SecurityPoliciesClient struct {
	client *Client
}

// NewSecurityPoliciesClient creates a new security policies client.
func NewSecurityPoliciesClient(client *Client) *SecurityPoliciesClient {
	return &SecurityPoliciesClient{client: client}
}

func securityPoliciesPath(domainID string) string {
	return constants.InfraDomainsPath + "/" + domainID + "/security-policies"
}

// List implements npapi.SecurityPoliciesClient.List.
func (c *SecurityPoliciesClient) List(ctx context.Context, domainID string, params *npapi.QueryParams) (*npapi.SecurityPolicyList, error) {
	if domainID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, securityPoliciesPath(domainID), params.ToValues())
	if err != nil {
		return nil, fmt.Errorf("listing security policies in domain %q: %w", domainID, err)
	}

	var list npapi.SecurityPolicyList

	err = json.Unmarshal(resp.Body, &list)
	if err != nil {
		return nil, fmt.Errorf("parsing security policy list: %w", err)
	}

	return &list, nil
}

// Get implements npapi.SecurityPoliciesClient.Get.
func (c *SecurityPoliciesClient) Get(ctx context.Context, domainID, policyID string) (*npapi.SecurityPolicy, error) {
	if domainID == "" || policyID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Get(ctx, securityPoliciesPath(domainID)+"/"+policyID, nil)
	if err != nil {
		return nil, fmt.Errorf("getting security policy %q: %w", policyID, err)
	}

	var policy npapi.SecurityPolicy

	err = json.Unmarshal(resp.Body, &policy)
	if err != nil {
		return nil, fmt.Errorf("parsing security policy: %w", err)
	}

	return &policy, nil
}

// Create implements npapi.SecurityPoliciesClient.Create. Creation is an
// idempotent PUT to the object path, keyed by the caller-chosen ID.
func (c *SecurityPoliciesClient) Create(ctx context.Context, domainID string, policy *npapi.SecurityPolicy) (*npapi.SecurityPolicy, error) {
	if domainID == "" || policy == nil || policy.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, securityPoliciesPath(domainID)+"/"+policy.ID, policy)
	if err != nil {
		return nil, fmt.Errorf("creating security policy %q: %w", policy.ID, err)
	}

	var created npapi.SecurityPolicy

	err = json.Unmarshal(resp.Body, &created)
	if err != nil {
		return nil, fmt.Errorf("parsing security policy: %w", err)
	}

	return &created, nil
}

// Update implements npapi.SecurityPoliciesClient.Update.
func (c *SecurityPoliciesClient) Update(ctx context.Context, domainID string, policy *npapi.SecurityPolicy) (*npapi.SecurityPolicy, error) {
	if domainID == "" || policy == nil || policy.ID == "" {
		return nil, ErrObjectIDRequired
	}

	resp, err := c.client.Put(ctx, securityPoliciesPath(domainID)+"/"+policy.ID, policy)
	if err != nil {
		return nil, fmt.Errorf("updating security policy %q: %w", policy.ID, err)
	}

	var updated npapi.SecurityPolicy

	err = json.Unmarshal(resp.Body, &updated)
	if err != nil {
		return nil, fmt.Errorf("parsing security policy: %w", err)
	}

	return &updated, nil
}

// Delete implements npapi.SecurityPoliciesClient.Delete.
func (c *SecurityPoliciesClient) Delete(ctx context.Context, domainID, policyID string) error {
	if domainID == "" || policyID == "" {
		return ErrObjectIDRequired
	}

	_, err := c.client.Delete(ctx, securityPoliciesPath(domainID)+"/"+policyID)
	if err != nil {
		return fmt.Errorf("deleting security policy %q: %w", policyID, err)
	}

	return nil
}
