package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric-io/npapi/pkg/npapi"
)

func TestServicesClient_List(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/services", request.URL.Path)
		assert.Equal(t, "GET", request.Method)

		response := npapi.ServiceList{
			Results: []npapi.Service{
				{PolicyObject: npapi.PolicyObject{ID: "HTTPS", DisplayName: "HTTPS"}},
				{PolicyObject: npapi.PolicyObject{ID: "SSH", DisplayName: "SSH"}},
			},
			ResultCount: 2,
		}
		_ = json.NewEncoder(writer).Encode(response)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	list, err := client.Services().List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, list.ResultCount)
	assert.Equal(t, "SSH", list.Results[1].ID)
}

func TestServicesClient_CreateWithEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/services/custom-https", request.URL.Path)
		assert.Equal(t, "PUT", request.Method)

		var body npapi.Service

		err := json.NewDecoder(request.Body).Decode(&body)
		assert.NoError(t, err)
		require.Len(t, body.ServiceEntries, 1)
		assert.Equal(t, "L4PortSetServiceEntry", body.ServiceEntries[0].ResourceType)
		assert.Equal(t, []string{"8443"}, body.ServiceEntries[0].DestinationPorts)

		_ = json.NewEncoder(writer).Encode(body)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	service := &npapi.Service{
		PolicyObject: npapi.PolicyObject{ID: "custom-https", DisplayName: "Custom HTTPS"},
		ServiceEntries: []npapi.ServiceEntry{
			{
				ResourceType:     "L4PortSetServiceEntry",
				ID:               "tcp-8443",
				L4Protocol:       "TCP",
				DestinationPorts: []string{"8443"},
			},
		},
	}

	created, err := client.Services().Create(context.Background(), service)
	require.NoError(t, err)
	assert.Equal(t, "custom-https", created.ID)
}

func TestServicesClient_Get(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/services/HTTPS", request.URL.Path)

		_ = json.NewEncoder(writer).Encode(npapi.Service{
			PolicyObject: npapi.PolicyObject{ID: "HTTPS", DisplayName: "HTTPS"},
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	service, err := client.Services().Get(context.Background(), "HTTPS")
	require.NoError(t, err)
	assert.Equal(t, "HTTPS", service.DisplayName)
}

func TestServicesClient_Delete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/services/custom-https", request.URL.Path)
		assert.Equal(t, "DELETE", request.Method)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	err := client.Services().Delete(context.Background(), "custom-https")
	require.NoError(t, err)
}
