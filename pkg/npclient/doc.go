// Package npclient provides the primary entry point for constructing a
// resilient network policy API client that implements the npapi.Client
// interface.
//
// It layers configuration, HTTP transport, authentication, and token endpoint
// discovery on top of the resource interfaces and types defined in the npapi
// package. Most applications should import npclient to build a client, then
// use the returned npapi.Client to access resource-specific clients, for
// example Domains(), Groups(), SecurityPolicies(), Services().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/netfabric-io/npapi/pkg/npapi"
//	  "github.com/netfabric-io/npapi/pkg/npclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Minimal: just an endpoint (no auth).
//	  cli, err := npclient.New(ctx, &npapi.Config{Endpoint: "https://nsx.example.com"})
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with an access token you already have:
//	  cli, err = npclient.New(ctx, &npapi.Config{
//	    Endpoint:    "https://nsx.example.com",
//	    AccessToken: "eyJhbGciOi...", // bearer token
//	  })
//
//	  // Or with username/password or client credentials. When credentials are
//	  // provided and no token URL is set, npclient discovers the token
//	  // endpoint from the API root (/) and sets TokenURL automatically.
//	  cli, err = npclient.New(ctx, &npapi.Config{
//	    Endpoint: "https://nsx.example.com",
//	    Username: "admin",
//	    Password: "secret",
//	    // alternatively:
//	    // ClientID:     "client-id",
//	    // ClientSecret: "client-secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Use resource clients via the npapi.Client interface
//	  groups, err := cli.Groups().List(ctx, "default", nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = groups
//	}
//
// # TLS and development mode
//
// For local development, you can set Config.SkipTLSVerify=true. This is gated
// by the environment variable NPAPI_DEV_MODE to avoid accidental insecure
// usage in production environments.
//
// # Helpers
//
// The package also provides convenience constructors NewWithEndpoint,
// NewWithToken, NewWithClientCredentials, and NewWithPassword that wrap New
// with the appropriate configuration.
package npclient
