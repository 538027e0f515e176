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

func TestGroupsClient_List(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/domains/default/groups", request.URL.Path)
		assert.Equal(t, "GET", request.Method)

		response := npapi.GroupList{
			Results: []npapi.Group{
				{PolicyObject: npapi.PolicyObject{ID: "web-servers", DisplayName: "Web Servers"}},
			},
			ResultCount: 1,
		}
		_ = json.NewEncoder(writer).Encode(response)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	list, err := client.Groups().List(context.Background(), "default", nil)
	require.NoError(t, err)
	require.Len(t, list.Results, 1)
	assert.Equal(t, "web-servers", list.Results[0].ID)
}

func TestGroupsClient_CreateWithExpression(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/domains/default/groups/web-servers", request.URL.Path)
		assert.Equal(t, "PUT", request.Method)

		var body npapi.Group

		err := json.NewDecoder(request.Body).Decode(&body)
		assert.NoError(t, err)
		require.Len(t, body.Expression, 1)
		assert.Equal(t, "Condition", body.Expression[0].ResourceType)
		assert.Equal(t, "VirtualMachine", body.Expression[0].MemberType)

		body.Path = "/infra/domains/default/groups/web-servers"
		_ = json.NewEncoder(writer).Encode(body)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	group := &npapi.Group{
		PolicyObject: npapi.PolicyObject{ID: "web-servers", DisplayName: "Web Servers"},
		Expression: []npapi.Expression{
			{
				ResourceType: "Condition",
				MemberType:   "VirtualMachine",
				Key:          "Tag",
				Operator:     "EQUALS",
				Value:        "web",
			},
		},
	}

	created, err := client.Groups().Create(context.Background(), "default", group)
	require.NoError(t, err)
	assert.Equal(t, "/infra/domains/default/groups/web-servers", created.Path)
}

func TestGroupsClient_Update(t *testing.T) {
	t.Parallel()

	revision := 3

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/domains/default/groups/web-servers", request.URL.Path)
		assert.Equal(t, "PUT", request.Method)

		var body npapi.Group

		err := json.NewDecoder(request.Body).Decode(&body)
		assert.NoError(t, err)
		require.NotNil(t, body.Revision)
		assert.Equal(t, revision, *body.Revision)

		next := revision + 1
		body.Revision = &next
		_ = json.NewEncoder(writer).Encode(body)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	updated, err := client.Groups().Update(context.Background(), "default", &npapi.Group{
		PolicyObject: npapi.PolicyObject{ID: "web-servers", DisplayName: "Web Servers", Revision: &revision},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Revision)
	assert.Equal(t, 4, *updated.Revision)
}

func TestGroupsClient_StaleRevisionConflict(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"error_code":    500127,
			"error_message": "revision mismatch",
			"module_name":   "Policy",
		})
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	_, err := client.Groups().Update(context.Background(), "default", &npapi.Group{
		PolicyObject: npapi.PolicyObject{ID: "web-servers"},
	})
	require.Error(t, err)
	assert.True(t, npapi.IsConflict(err))
}

func TestGroupsClient_Delete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/policy/api/v1/infra/domains/default/groups/web-servers", request.URL.Path)
		assert.Equal(t, "DELETE", request.Method)
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewTestClient(server.URL)

	err := client.Groups().Delete(context.Background(), "default", "web-servers")
	require.NoError(t, err)
}

func TestGroupsClient_RequiresIDs(t *testing.T) {
	t.Parallel()

	client := NewTestClient("http://unused.invalid")

	_, err := client.Groups().List(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrObjectIDRequired)

	_, err = client.Groups().Get(context.Background(), "default", "")
	require.ErrorIs(t, err, ErrObjectIDRequired)

	err = client.Groups().Delete(context.Background(), "", "web-servers")
	require.ErrorIs(t, err, ErrObjectIDRequired)
}
