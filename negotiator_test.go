package a2aclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxis/a2a-client-go/a2a"
)

func TestNegotiate_ClientPreferenceFirstMutualMatch(t *testing.T) {
	card := &a2a.AgentCard{
		URL:                "https://agent.example/grpc",
		PreferredTransport: a2a.TransportGRPC,
	}

	result, err := Negotiate(card,
		[]a2a.TransportProtocol{a2a.TransportJSONRPC, a2a.TransportGRPC}, true)
	require.NoError(t, err)
	assert.Equal(t, a2a.TransportGRPC, result.Transport)
	assert.Equal(t, "https://agent.example/grpc", result.EndpointURL)
}

func TestNegotiate_NoMutualTransport(t *testing.T) {
	card := &a2a.AgentCard{
		URL:                "https://agent.example",
		PreferredTransport: a2a.TransportHTTPJSON,
	}

	_, err := Negotiate(card, []a2a.TransportProtocol{a2a.TransportJSONRPC, a2a.TransportGRPC}, true)

	var noMatch *NoCompatibleTransportError
	require.ErrorAs(t, err, &noMatch)
	assert.Contains(t, noMatch.Supported, a2a.TransportJSONRPC)
	assert.Contains(t, noMatch.Offered, a2a.TransportHTTPJSON)
}

func TestNegotiate_ClientPreferenceOrderWins(t *testing.T) {
	card := &a2a.AgentCard{
		URL:                "https://agent.example/rpc",
		PreferredTransport: a2a.TransportGRPC,
		AdditionalInterfaces: []a2a.AgentInterface{
			{Transport: a2a.TransportJSONRPC, URL: "https://agent.example/jsonrpc"},
		},
	}

	result, err := Negotiate(card,
		[]a2a.TransportProtocol{a2a.TransportJSONRPC, a2a.TransportGRPC}, true)
	require.NoError(t, err)
	assert.Equal(t, a2a.TransportJSONRPC, result.Transport)
	assert.Equal(t, "https://agent.example/jsonrpc", result.EndpointURL)
}

func TestNegotiate_AgentPreferenceOrderWithoutClientPreference(t *testing.T) {
	card := &a2a.AgentCard{
		URL:                "https://agent.example/grpc",
		PreferredTransport: a2a.TransportGRPC,
		AdditionalInterfaces: []a2a.AgentInterface{
			{Transport: a2a.TransportJSONRPC, URL: "https://agent.example/jsonrpc"},
		},
	}

	result, err := Negotiate(card,
		[]a2a.TransportProtocol{a2a.TransportJSONRPC, a2a.TransportGRPC}, false)
	require.NoError(t, err)
	assert.Equal(t, a2a.TransportGRPC, result.Transport, "agent order applies when client preference is off")
}

func TestNegotiate_AdditionalInterfaceInheritsCardURL(t *testing.T) {
	card := &a2a.AgentCard{
		URL:                "https://agent.example",
		PreferredTransport: a2a.TransportGRPC,
		AdditionalInterfaces: []a2a.AgentInterface{
			{Transport: a2a.TransportJSONRPC},
		},
	}

	result, err := Negotiate(card, []a2a.TransportProtocol{a2a.TransportJSONRPC}, true)
	require.NoError(t, err)
	assert.Equal(t, "https://agent.example", result.EndpointURL)
}

func TestNegotiate_DefaultsToJSONRPCWhenCardOmitsPreference(t *testing.T) {
	card := &a2a.AgentCard{URL: "https://agent.example"}

	result, err := Negotiate(card, []a2a.TransportProtocol{a2a.TransportJSONRPC}, false)
	require.NoError(t, err)
	assert.Equal(t, a2a.TransportJSONRPC, result.Transport)
	assert.Equal(t, "https://agent.example", result.EndpointURL)
}
