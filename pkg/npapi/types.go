package npapi

import (
	"net/url"
	"strconv"
)

// PolicyObject is the base structure shared by all NSX policy resources.
// The client passes these through verbatim; field semantics belong to the
// backend.
type PolicyObject struct {
	ID               string `json:"id,omitempty"                  yaml:"id,omitempty"`
	DisplayName      string `json:"display_name,omitempty"        yaml:"display_name,omitempty"`
	Description      string `json:"description,omitempty"         yaml:"description,omitempty"`
	Path             string `json:"path,omitempty"                yaml:"path,omitempty"`
	ParentPath       string `json:"parent_path,omitempty"         yaml:"parent_path,omitempty"`
	ResourceType     string `json:"resource_type,omitempty"       yaml:"resource_type,omitempty"`
	Revision         *int   `json:"_revision,omitempty"           yaml:"_revision,omitempty"`
	CreateTime       int64  `json:"_create_time,omitempty"        yaml:"_create_time,omitempty"`
	LastModifiedTime int64  `json:"_last_modified_time,omitempty" yaml:"_last_modified_time,omitempty"`
	Tags             []Tag  `json:"tags,omitempty"                yaml:"tags,omitempty"`
}

// Tag is an NSX scope/tag pair.
type Tag struct {
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Tag   string `json:"tag,omitempty"   yaml:"tag,omitempty"`
}

// Domain is a policy domain, the container for groups and security policies.
type Domain struct {
	PolicyObject `yaml:",inline"`
}

// Group is a policy group. Expression trees are forwarded as-is.
type Group struct {
	PolicyObject `yaml:",inline"`

	Expression []Expression `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Expression is one node of a group membership expression. The type is a
// union over the expression variants the backend accepts; only the fields
// matching ResourceType are populated.
type Expression struct {
	ResourceType        string       `json:"resource_type"                  yaml:"resource_type"`
	MemberType          string       `json:"member_type,omitempty"          yaml:"member_type,omitempty"`
	Key                 string       `json:"key,omitempty"                  yaml:"key,omitempty"`
	Operator            string       `json:"operator,omitempty"             yaml:"operator,omitempty"`
	Value               string       `json:"value,omitempty"                yaml:"value,omitempty"`
	IPAddresses         []string     `json:"ip_addresses,omitempty"         yaml:"ip_addresses,omitempty"`
	Paths               []string     `json:"paths,omitempty"                yaml:"paths,omitempty"`
	ConjunctionOperator string       `json:"conjunction_operator,omitempty" yaml:"conjunction_operator,omitempty"`
	Expressions         []Expression `json:"expressions,omitempty"          yaml:"expressions,omitempty"`
}

// SecurityPolicy is an ordered set of firewall rules within a domain.
type SecurityPolicy struct {
	PolicyObject `yaml:",inline"`

	Category       string   `json:"category,omitempty"        yaml:"category,omitempty"`
	SequenceNumber int      `json:"sequence_number,omitempty" yaml:"sequence_number,omitempty"`
	Stateful       *bool    `json:"stateful,omitempty"        yaml:"stateful,omitempty"`
	Scope          []string `json:"scope,omitempty"           yaml:"scope,omitempty"`
	Rules          []Rule   `json:"rules,omitempty"           yaml:"rules,omitempty"`
}

// Rule is a single firewall rule within a security policy.
type Rule struct {
	PolicyObject `yaml:",inline"`

	SourceGroups      []string `json:"source_groups,omitempty"      yaml:"source_groups,omitempty"`
	DestinationGroups []string `json:"destination_groups,omitempty" yaml:"destination_groups,omitempty"`
	Services          []string `json:"services,omitempty"           yaml:"services,omitempty"`
	Profiles          []string `json:"profiles,omitempty"           yaml:"profiles,omitempty"`
	Scope             []string `json:"scope,omitempty"              yaml:"scope,omitempty"`
	Action            string   `json:"action,omitempty"             yaml:"action,omitempty"`
	Direction         string   `json:"direction,omitempty"          yaml:"direction,omitempty"`
	SequenceNumber    int      `json:"sequence_number,omitempty"    yaml:"sequence_number,omitempty"`
	Logged            *bool    `json:"logged,omitempty"             yaml:"logged,omitempty"`
	Disabled          *bool    `json:"disabled,omitempty"           yaml:"disabled,omitempty"`
}

// Service is a reusable port/protocol definition.
type Service struct {
	PolicyObject `yaml:",inline"`

	ServiceEntries []ServiceEntry `json:"service_entries,omitempty" yaml:"service_entries,omitempty"`
}

// ServiceEntry is one port/protocol element of a service.
type ServiceEntry struct {
	ResourceType     string   `json:"resource_type"               yaml:"resource_type"`
	ID               string   `json:"id,omitempty"                yaml:"id,omitempty"`
	DisplayName      string   `json:"display_name,omitempty"      yaml:"display_name,omitempty"`
	L4Protocol       string   `json:"l4_protocol,omitempty"       yaml:"l4_protocol,omitempty"`
	Protocol         string   `json:"protocol,omitempty"          yaml:"protocol,omitempty"`
	SourcePorts      []string `json:"source_ports,omitempty"      yaml:"source_ports,omitempty"`
	DestinationPorts []string `json:"destination_ports,omitempty" yaml:"destination_ports,omitempty"`
	ICMPType         *int     `json:"icmp_type,omitempty"         yaml:"icmp_type,omitempty"`
	ICMPCode         *int     `json:"icmp_code,omitempty"         yaml:"icmp_code,omitempty"`
}

// ListResponse is the cursor-paginated list envelope the backend returns.
type ListResponse[T any] struct {
	Results       []T    `json:"results"                  yaml:"results"`
	ResultCount   int    `json:"result_count"             yaml:"result_count"`
	Cursor        string `json:"cursor,omitempty"         yaml:"cursor,omitempty"`
	SortBy        string `json:"sort_by,omitempty"        yaml:"sort_by,omitempty"`
	SortAscending *bool  `json:"sort_ascending,omitempty" yaml:"sort_ascending,omitempty"`
}

// DomainList is a paginated list of Domain resources.
type DomainList = ListResponse[Domain]

// GroupList is a paginated list of Group resources.
type GroupList = ListResponse[Group]

// SecurityPolicyList is a paginated list of SecurityPolicy resources.
type SecurityPolicyList = ListResponse[SecurityPolicy]

// ServiceList is a paginated list of Service resources.
type ServiceList = ListResponse[Service]

// NodeInfo is the management node properties document, used for the
// connectivity probe.
type NodeInfo struct {
	NodeVersion    string `json:"node_version,omitempty"    yaml:"node_version,omitempty"`
	ProductVersion string `json:"product_version,omitempty" yaml:"product_version,omitempty"`
	Hostname       string `json:"hostname,omitempty"        yaml:"hostname,omitempty"`
	NodeType       string `json:"node_type,omitempty"       yaml:"node_type,omitempty"`
	NodeUUID       string `json:"node_uuid,omitempty"       yaml:"node_uuid,omitempty"`
}

// QueryParams holds cursor pagination and filter parameters for list calls.
type QueryParams struct {
	Cursor        string
	PageSize      int
	SortBy        string
	SortAscending bool
	Filters       map[string]string
}

// NewQueryParams creates an empty QueryParams.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string]string),
	}
}

// WithPageSize sets the page size and returns the receiver for chaining.
func (p *QueryParams) WithPageSize(size int) *QueryParams {
	p.PageSize = size

	return p
}

// WithCursor sets the pagination cursor and returns the receiver for chaining.
func (p *QueryParams) WithCursor(cursor string) *QueryParams {
	p.Cursor = cursor

	return p
}

// WithFilter adds a filter parameter and returns the receiver for chaining.
func (p *QueryParams) WithFilter(key, value string) *QueryParams {
	if p.Filters == nil {
		p.Filters = make(map[string]string)
	}

	p.Filters[key] = value

	return p
}

// ToValues converts the parameters to url.Values for the transport. A nil
// receiver yields nil so callers can pass optional params straight through.
func (p *QueryParams) ToValues() url.Values {
	if p == nil {
		return nil
	}

	values := url.Values{}

	if p.Cursor != "" {
		values.Set("cursor", p.Cursor)
	}

	if p.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(p.PageSize))
	}

	if p.SortBy != "" {
		values.Set("sort_by", p.SortBy)
		values.Set("sort_ascending", strconv.FormatBool(p.SortAscending))
	}

	for key, value := range p.Filters {
		values.Set(key, value)
	}

	return values
}
