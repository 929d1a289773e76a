package client

import (
	"fmt"
	"sort"
)

// Sample notification bodies for manual testing against a running relay.
var examplePayloads = map[string]string{
	"transfer": `{"transactions":[{"signature":"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW","type":"TRANSFER"}]}`,
	"legacy":   `{"transaction":{"signature":"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"}}`,
	"nft": `[{"signature":"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW","type":"NFT_SALE",` +
		`"events":{"nft":{"signature":"5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",` +
		`"nfts":[{"mint":"DsfCsbbPH77p6yeLS1i4ag9UA5gP9xWSvdCx72FJjLsx"}],"amount":2500000000,` +
		`"buyer":"CKs1E69a2e9TmH4mKKLrXFF8kD3ZnwKjoEuXa6sz9WqX","seller":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM","source":"MAGIC_EDEN"}}}]`,
}

// ExamplePayload returns a named sample webhook body.
func ExamplePayload(name string) ([]byte, error) {
	p, ok := examplePayloads[name]
	if !ok {
		return nil, fmt.Errorf("unknown example %q: available examples are %v", name, ExampleNames())
	}
	return []byte(p), nil
}

// ExampleNames lists the available sample payloads in sorted order.
func ExampleNames() []string {
	names := make([]string, 0, len(examplePayloads))
	for name := range examplePayloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
