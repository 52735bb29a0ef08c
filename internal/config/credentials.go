package config

import "sort"

// CredentialRegistry holds named orchestrator tokens
type CredentialRegistry struct {
	Tokens  map[string]Credential `json:"tokens"`
	Default string                `json:"default"`
}

// Credential is a single orchestrator bearer token
type Credential struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

// GetToken returns the token for a named credential
func (r *CredentialRegistry) GetToken(name string) (string, bool) {
	if cred, ok := r.Tokens[name]; ok {
		return cred.Token, true
	}
	return "", false
}

// GetDefaultToken returns the default credential's token
func (r *CredentialRegistry) GetDefaultToken() (string, bool) {
	if r.Default == "" {
		return "", false
	}
	return r.GetToken(r.Default)
}

// Has checks whether a named credential exists
func (r *CredentialRegistry) Has(name string) bool {
	_, ok := r.Tokens[name]
	return ok
}

// CredentialInfo represents a credential without sensitive data (for API responses)
type CredentialInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default,omitempty"`
}

// ListCredentials returns all credentials without sensitive data,
// sorted by name
func (r *CredentialRegistry) ListCredentials() []CredentialInfo {
	result := make([]CredentialInfo, 0, len(r.Tokens))
	for name, cred := range r.Tokens {
		result = append(result, CredentialInfo{
			Name:        name,
			Description: cred.Description,
			IsDefault:   name == r.Default,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
