// Package npapi defines the public types and interfaces of the resilient
// NSX policy API client: the Client interface with its generic verbs and
// resource clients, the retry and circuit breaker policies, the error
// taxonomy, batch execution, and the optional GET response cache.
//
// Construct clients with the npclient package:
//
//	client, err := npclient.New(ctx, &npapi.Config{
//	    Endpoint: "https://nsx.example.com",
//	    Username: "admin",
//	    Password: "secret",
//	})
//
// Every call routes through a per-target circuit breaker and a configurable
// retry policy before reaching the network; see RetryPolicyConfig and
// CircuitBreakerConfig.
package npapi
