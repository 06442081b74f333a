package notification

// NewAPNsSenderWithRoots exposes newAPNsSenderWithRoots to tests that run
// their own gateway with a self-signed certificate.
var NewAPNsSenderWithRoots = newAPNsSenderWithRoots
