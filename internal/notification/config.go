package notification

import (
	"errors"
	"time"
)

// DefaultGateway is the production APNs endpoint.
const DefaultGateway = "https://api.push.apple.com"

// Precondition errors reported by APNsConfig.Validate.
var (
	ErrNoIdentity = errors.New("no APNs client identity configured")
	ErrNoTopic    = errors.New("no APNs notification topic configured")
)

// APNsConfig holds connection parameters for the APNs sender.
type APNsConfig struct {
	Gateway      string
	IdentityPath string // PEM file holding the private key and certificate chain
	Topic        string
	Timeout      time.Duration
}

// Validate checks that the identity and topic are set.
func (c APNsConfig) Validate() error {
	if c.IdentityPath == "" {
		return ErrNoIdentity
	}
	if c.Topic == "" {
		return ErrNoTopic
	}
	return nil
}
