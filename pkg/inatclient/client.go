// Package inatclient provides the main entry point for creating iNaturalist
// API clients.
package inatclient

import (
	"fmt"
	"strings"

	"github.com/fieldnotes-io/inat/internal/client"
	"github.com/fieldnotes-io/inat/internal/constants"
	"github.com/fieldnotes-io/inat/pkg/inat"
)

// New creates a new API client from config. A nil or zero-valued config
// yields an unauthenticated client against the public API.
func New(config *inat.Config) (inat.Client, error) {
	if config == nil {
		config = &inat.Config{}
	}

	if config.APIEndpoint == "" {
		config.APIEndpoint = constants.DefaultAPIEndpoint
	}

	// Normalize API endpoint
	apiEndpoint := strings.TrimSuffix(config.APIEndpoint, "/")
	if !strings.HasPrefix(apiEndpoint, "http://") && !strings.HasPrefix(apiEndpoint, "https://") {
		apiEndpoint = "https://" + apiEndpoint
	}

	config.APIEndpoint = apiEndpoint

	if needsAuth(config) && config.TokenURL == "" {
		config.TokenURL = constants.DefaultTokenURL
	}

	cli, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return cli, nil
}

// needsAuth checks if the config requires a token endpoint.
func needsAuth(config *inat.Config) bool {
	return config.APIToken == "" &&
		(config.Username != "" || config.ClientID != "")
}

// NewWithEndpoint creates a new unauthenticated client against endpoint.
func NewWithEndpoint(endpoint string) (inat.Client, error) {
	return New(&inat.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with a pre-issued API token.
func NewWithToken(token string) (inat.Client, error) {
	return New(&inat.Config{
		APIToken: token,
	})
}

// NewWithClientCredentials creates a new client using OAuth2 client
// credentials.
func NewWithClientCredentials(clientID, clientSecret string) (inat.Client, error) {
	return New(&inat.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithPassword creates a new client using the resource owner password
// grant. The provider requires the registered application's credentials
// alongside the account's.
func NewWithPassword(clientID, clientSecret, username, password string) (inat.Client, error) {
	return New(&inat.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     username,
		Password:     password,
	})
}
