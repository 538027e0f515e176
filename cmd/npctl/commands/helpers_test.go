package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netfabric-io/npapi/pkg/npapi"
)

func TestExtractDomainFromEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		expected string
	}{
		{"https://nsx.example.com", "nsx.example.com"},
		{"http://nsx.example.com:8080", "nsx.example.com"},
		{"nsx.example.com/policy", "nsx.example.com"},
		{"https://10.0.0.1:443/", "10.0.0.1"},
	}

	for _, testCase := range tests {
		assert.Equal(t, testCase.expected, extractDomainFromEndpoint(testCase.endpoint), testCase.endpoint)
	}
}

func TestBuildListParams(t *testing.T) {
	t.Parallel()

	assert.Nil(t, buildListParams(50, ""))

	params := buildListParams(10, "abc")
	assert.Equal(t, 10, params.PageSize)
	assert.Equal(t, "abc", params.Cursor)
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "web", displayName(npapi.PolicyObject{ID: "web"}))
	assert.Equal(t, "Web Servers", displayName(npapi.PolicyObject{ID: "web", DisplayName: "Web Servers"}))
}

func TestRevisionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NotAvailable, revisionString(npapi.PolicyObject{}))

	revision := 3
	assert.Equal(t, "3", revisionString(npapi.PolicyObject{Revision: &revision}))
}
