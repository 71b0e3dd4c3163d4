package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Transport error classifications used in the report.
const (
	ErrKindTimeout          = "Timeout"
	ErrKindDNS              = "DNSError"
	ErrKindRefused          = "ConnectionRefused"
	ErrKindReset            = "ConnectionReset"
	ErrKindTLS              = "SSLError"
	ErrKindTooManyRedirects = "TooManyRedirects"
	ErrKindInvalidURL       = "InvalidURL"
	ErrKindCanceled         = "Canceled"
	ErrKindConnection       = "ConnectionError"
)

// ErrTooManyRedirects is returned by the redirect policy once the chain
// exceeds the limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// Classify maps a transport failure onto a short kind string.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrTooManyRedirects) {
		return ErrKindTooManyRedirects
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrKindDNS
	}

	// Client.Timeout errors do not unwrap to a context error, so timeouts
	// are checked before cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	if errors.Is(err, context.Canceled) {
		return ErrKindCanceled
	}

	if isTLSError(err) {
		return ErrKindTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrKindRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return ErrKindReset
	}

	msg := err.Error()
	if strings.Contains(msg, "unsupported protocol scheme") ||
		strings.Contains(msg, "no Host in request URL") ||
		strings.Contains(msg, "invalid URL") {
		return ErrKindInvalidURL
	}

	return ErrKindConnection
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert):
		return true
	}
	return strings.Contains(err.Error(), "tls: ")
}
