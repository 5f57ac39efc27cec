// Package cert reads the PEM credentials used for mutually authenticated
// sessions.
//
// Credentials are provisioned by an external tool under the user's
// .panduza tree:
//
//	.panduza/keys/<role>_private_key.pem
//	.panduza/certificate/<role>_{certificate,csr}.pem
//	.panduza/certificate/root_ca_certificate.pem
//
// This package never generates them. DefaultPaths encodes the layout as a
// policy for command-line tools; libraries receive explicit Paths.
package cert
