package notification

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sideshow/apns2"
	"golang.org/x/net/http2"

	"github.com/shaharia-lab/apns-notifyd/internal/build"
)

// APNsSender delivers notifications to an APNs-compatible gateway through
// an apns2 client. All requests share the client's connection, so one
// HTTP/2 connection is reused across devices.
type APNsSender struct {
	client *apns2.Client
}

// NewAPNsSender returns a sender that posts to gateway using client.
func NewAPNsSender(gateway string, client *http.Client) *APNsSender {
	return newAPNsSender(&apns2.Client{Host: gateway, HTTPClient: client})
}

// NewAPNsSenderFromConfig validates cfg, loads the client identity and
// builds a sender presenting it as the TLS client certificate.
func NewAPNsSenderFromConfig(cfg APNsConfig) (*APNsSender, error) {
	return newAPNsSenderWithRoots(cfg, nil)
}

// newAPNsSenderWithRoots is NewAPNsSenderFromConfig with the gateway's
// trust roots overridden; nil keeps the system pool.
func newAPNsSenderWithRoots(cfg APNsConfig, roots *x509.CertPool) (*APNsSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	identity, err := LoadIdentity(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("loading APNs identity: %w", err)
	}

	client := apns2.NewClient(identity)
	client.Host = cfg.Gateway
	if client.Host == "" {
		client.Host = DefaultGateway
	}
	if roots != nil {
		setRootCAs(client, roots)
	}
	return newAPNsSender(client), nil
}

func setRootCAs(client *apns2.Client, roots *x509.CertPool) {
	t, ok := client.HTTPClient.Transport.(*http2.Transport)
	if !ok {
		return
	}
	if t.TLSClientConfig == nil {
		t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	t.TLSClientConfig.RootCAs = roots
}

func newAPNsSender(client *apns2.Client) *APNsSender {
	client.Host = strings.TrimRight(client.Host, "/")

	// Copy the http.Client so a caller-owned client is not modified.
	hc := *client.HTTPClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = userAgentTransport{base: base}
	client.HTTPClient = &hc
	return &APNsSender{client: client}
}

// Name returns the sender identifier.
func (s *APNsSender) Name() string { return "apns" }

// Send posts n to /3/device/<token>.
func (s *APNsSender) Send(ctx context.Context, n Notification) (*Response, error) {
	res, err := s.client.PushWithContext(ctx, &apns2.Notification{
		// apns2 joins the token into the request path as given.
		DeviceToken: url.PathEscape(n.DeviceToken),
		Topic:       n.Topic,
		Expiration:  n.Expiration,
		Priority:    n.Priority,
		PushType:    apns2.PushTypeAlert,
		Payload:     n.Payload(),
	})
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", s.client.Host, err)
	}
	return &Response{StatusCode: res.StatusCode, Reason: res.Reason, ID: res.ApnsID}, nil
}

// userAgentTransport stamps every request with the relay's User-Agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", build.UserAgent())
	return t.base.RoundTrip(req)
}
