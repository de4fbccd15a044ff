package config

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential option for Google Cloud clients.
// Inline JSON wins over a credentials file; with neither set the client
// falls back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	if raw := strings.TrimSpace(g.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(g.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}
