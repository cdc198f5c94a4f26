package connector

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Auth writes credentials into the default request headers.
type Auth func(http.Header)

// Bearer authenticates with an OAuth or API bearer token.
func Bearer(token string) Auth {
	return func(h http.Header) {
		if token = strings.TrimSpace(token); token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
	}
}

// Basic authenticates with HTTP basic credentials.
func Basic(username, password string) Auth {
	return func(h http.Header) {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		h.Set("Authorization", "Basic "+creds)
	}
}

// APIKey sends key in a vendor-specific header such as X-API-Key.
func APIKey(header, key string) Auth {
	return func(h http.Header) {
		if header = strings.TrimSpace(header); header != "" {
			h.Set(header, key)
		}
	}
}
