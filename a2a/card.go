// Package a2a contains structures for the A2A protocol v0.2.x specification.
package a2a

type TransportProtocol string

const (
	TransportJSONRPC  TransportProtocol = "JSONRPC"
	TransportGRPC     TransportProtocol = "GRPC"
	TransportHTTPJSON TransportProtocol = "HTTP+JSON"
)

// AgentInterface declares an additional transport endpoint exposed by an agent.
type AgentInterface struct {
	Transport TransportProtocol `json:"transport"`
	URL       string            `json:"url"`
}

type AgentProvider struct {
	Organization string `json:"organization,omitempty"`
	URL          string `json:"url,omitempty"`
}

type AgentExtension struct {
	URI         string                 `json:"uri"`
	Description string                 `json:"description,omitempty"`
	Required    bool                   `json:"required,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
}

type AgentCapabilities struct {
	Streaming              bool             `json:"streaming,omitempty"`
	PushNotifications      bool             `json:"pushNotifications,omitempty"`
	StateTransitionHistory bool             `json:"stateTransitionHistory,omitempty"`
	Extensions             []AgentExtension `json:"extensions,omitempty"`
}

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the capability document advertised by an agent. The client
// reads it to negotiate a transport and to discover streaming support; it
// never writes one.
type AgentCard struct {
	ProtocolVersion                   string                `json:"protocolVersion"`
	Name                              string                `json:"name"`
	Description                       string                `json:"description"`
	URL                               string                `json:"url,omitempty"`
	PreferredTransport                TransportProtocol     `json:"preferredTransport,omitempty"`
	AdditionalInterfaces              []AgentInterface      `json:"additionalInterfaces,omitempty"`
	IconURL                           string                `json:"iconUrl,omitempty"`
	Provider                          *AgentProvider        `json:"provider,omitempty"`
	Version                           string                `json:"version,omitempty"`
	DocumentationURL                  string                `json:"documentationUrl,omitempty"`
	Capabilities                      AgentCapabilities     `json:"capabilities"`
	SecuritySchemes                   map[string]any        `json:"securitySchemes,omitempty"`
	Security                          []map[string][]string `json:"security,omitempty"`
	DefaultInputModes                 []string              `json:"defaultInputModes"`
	DefaultOutputModes                []string              `json:"defaultOutputModes"`
	Skills                            []AgentSkill          `json:"skills"`
	SupportsAuthenticatedExtendedCard bool                  `json:"supportsAuthenticatedExtendedCard,omitempty"`
}

// Interfaces returns every transport endpoint the card exposes, the preferred
// one first. Entries without a URL fall back to the card URL.
func (c *AgentCard) Interfaces() []AgentInterface {
	var out []AgentInterface
	if c.PreferredTransport != "" {
		out = append(out, AgentInterface{Transport: c.PreferredTransport, URL: c.URL})
	} else if c.URL != "" {
		// An absent preferredTransport means JSONRPC at the card URL.
		out = append(out, AgentInterface{Transport: TransportJSONRPC, URL: c.URL})
	}
	for _, ifc := range c.AdditionalInterfaces {
		entry := ifc
		if entry.URL == "" {
			entry.URL = c.URL
		}
		out = append(out, entry)
	}
	return out
}
