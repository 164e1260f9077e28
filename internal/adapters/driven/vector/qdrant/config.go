package qdrant

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is the Qdrant gRPC port.
const DefaultPort = 6334

// DefaultCollectionPrefix namespaces docsync collections inside a shared Qdrant.
const DefaultCollectionPrefix = "docsync_"

// Config configures the Qdrant gateway.
type Config struct {
	// URL is host:port or an http(s) URL. An https scheme enables TLS.
	URL string

	// APIKey is sent with every request when set.
	APIKey string

	// Dimensions is the vector size used when creating collections.
	Dimensions int

	// CollectionPrefix is prepended to every docsync collection ID.
	CollectionPrefix string
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL       ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL       ConfigErrorCode = "invalid_url"
	ConfigErrorInvalidDimension ConfigErrorCode = "invalid_dimensions"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case ConfigErrorMissingURL:
		return "qdrant url is required (vector_index.url)"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid qdrant url %q; expected host:port or http://host:port", e.Value)
	case ConfigErrorInvalidDimension:
		return fmt.Sprintf("invalid qdrant dimensions %s; expected positive integer", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// endpoint is the parsed connection target.
type endpoint struct {
	host   string
	port   int
	useTLS bool
}

// endpoint validates the config and resolves the connection target.
func (c Config) endpoint() (endpoint, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return endpoint{}, &ConfigError{Code: ConfigErrorMissingURL}
	}
	if c.Dimensions <= 0 {
		return endpoint{}, &ConfigError{Code: ConfigErrorInvalidDimension, Value: strconv.Itoa(c.Dimensions)}
	}

	ep := endpoint{port: DefaultPort}
	hostport := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return endpoint{}, &ConfigError{Code: ConfigErrorInvalidURL, Value: raw, Cause: err}
		}
		ep.useTLS = u.Scheme == "https"
		hostport = u.Host
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given.
		ep.host = hostport
		return ep, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return endpoint{}, &ConfigError{Code: ConfigErrorInvalidURL, Value: raw, Cause: err}
	}
	ep.host = host
	ep.port = port
	return ep, nil
}

func (c Config) prefix() string {
	if c.CollectionPrefix == "" {
		return DefaultCollectionPrefix
	}
	return c.CollectionPrefix
}
