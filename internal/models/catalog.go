package models

// AIModel represents a generation model the backend can route a message to.
type AIModel struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	ProviderName string `json:"providerName,omitempty"`
	Default      bool   `json:"default,omitempty"`
}

// Agent is an optional specialized handler a message can be addressed to.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
