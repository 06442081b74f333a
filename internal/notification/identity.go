package notification

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"

	"github.com/sideshow/apns2/certificate"
)

// LoadIdentity reads a PEM file containing both the client private key and
// its certificate chain, as exported for APNs certificate authentication.
// The key must be unencrypted.
func LoadIdentity(path string) (tls.Certificate, error) {
	cert, err := certificate.FromPemFile(path, "")
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return tls.Certificate{}, fmt.Errorf("reading identity %q: %w", path, err)
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parsing identity %q: %w", path, err)
	}
	return cert, nil
}
