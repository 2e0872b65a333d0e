package a2aclient

import (
	"fmt"

	"github.com/praxis/a2a-client-go/a2a"
)

// NegotiationResult is the transport and endpoint chosen for a target agent.
// It is cached per target for the lifetime of a Client.
type NegotiationResult struct {
	Transport   a2a.TransportProtocol
	EndpointURL string
}

// NoCompatibleTransportError reports that the client and the target agent
// share no transport.
type NoCompatibleTransportError struct {
	Supported []a2a.TransportProtocol
	Offered   []a2a.TransportProtocol
}

func (e *NoCompatibleTransportError) Error() string {
	return fmt.Sprintf("a2aclient: no compatible transport (client supports %v, agent offers %v)", e.Supported, e.Offered)
}

// Negotiate chooses a transport given the client's ordered preferences and
// the agent's capability document. With useClientPreference the client's
// order wins; otherwise the agent's advertised order (preferred transport
// first) is followed. The agent's preferred transport is the final fallback
// before failing with *NoCompatibleTransportError.
func Negotiate(card *a2a.AgentCard, supported []a2a.TransportProtocol, useClientPreference bool) (*NegotiationResult, error) {
	offered := card.Interfaces()

	if useClientPreference {
		for _, want := range supported {
			for _, ifc := range offered {
				if ifc.Transport == want {
					return &NegotiationResult{Transport: want, EndpointURL: ifc.URL}, nil
				}
			}
		}
	} else {
		clientSupports := make(map[a2a.TransportProtocol]bool, len(supported))
		for _, tp := range supported {
			clientSupports[tp] = true
		}
		for _, ifc := range offered {
			if clientSupports[ifc.Transport] {
				return &NegotiationResult{Transport: ifc.Transport, EndpointURL: ifc.URL}, nil
			}
		}
	}

	// Fall back to the agent's preferred transport if the client can speak
	// it at all.
	if card.PreferredTransport != "" {
		for _, tp := range supported {
			if tp == card.PreferredTransport {
				return &NegotiationResult{Transport: tp, EndpointURL: card.URL}, nil
			}
		}
	}

	offeredProtocols := make([]a2a.TransportProtocol, 0, len(offered))
	for _, ifc := range offered {
		offeredProtocols = append(offeredProtocols, ifc.Transport)
	}
	return nil, &NoCompatibleTransportError{Supported: supported, Offered: offeredProtocols}
}
