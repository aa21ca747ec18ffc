package authflow

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stacklok/hass-onboard/internal/trust"
)

// challenger answers the trust challenges raised during a TLS handshake
type challenger interface {
	DidReceiveChallenge(ctx context.Context, challenge trust.Challenge) (trust.Disposition, *trust.Credential)
}

// newChallengeTransport returns a transport whose TLS handshakes report failed server
// verification and client certificate requests to delegate as trust challenges.
// rootCAs nil means the system pool. Environment proxies are not used: a CONNECT tunnel
// would skip DialTLSContext and with it every challenge.
func newChallengeTransport(rootCAs *x509.CertPool, delegate challenger) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		raw, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		conn := tls.Client(raw, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
			NextProtos: []string{"http/1.1"},
			// Verification is done in VerifyConnection so failures can be raised as challenges
			InsecureSkipVerify: true, //nolint:gosec
			VerifyConnection: func(cs tls.ConnectionState) error {
				return verifyServer(ctx, rootCAs, delegate, host, cs)
			},
			GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
				return clientCertificate(ctx, delegate, host)
			},
		})
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, err
		}
		return conn, nil
	}
	return transport
}

func verifyServer(
	ctx context.Context,
	rootCAs *x509.CertPool,
	delegate challenger,
	host string,
	cs tls.ConnectionState,
) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("tls: server presented no certificates")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range cs.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}
	_, verifyErr := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
		Roots:         rootCAs,
		DNSName:       host,
		Intermediates: intermediates,
	})
	if verifyErr == nil {
		return nil
	}

	disposition, credential := delegate.DidReceiveChallenge(ctx, trust.Challenge{
		Kind:             trust.ChallengeServerTrust,
		Host:             host,
		PeerCertificates: cs.PeerCertificates,
		VerifyError:      verifyErr,
	})
	switch disposition {
	case trust.UseCredential:
		if credential != nil && credential.TrustServer {
			return nil
		}
		return verifyErr
	case trust.CancelChallenge:
		return fmt.Errorf("%w: server trust for %s", trust.ErrChallengeCancelled, host)
	default:
		return verifyErr
	}
}

func clientCertificate(ctx context.Context, delegate challenger, host string) (*tls.Certificate, error) {
	disposition, credential := delegate.DidReceiveChallenge(ctx, trust.Challenge{
		Kind: trust.ChallengeClientCertificate,
		Host: host,
	})
	switch disposition {
	case trust.UseCredential:
		if credential != nil && credential.Certificate != nil {
			return credential.Certificate, nil
		}
	case trust.CancelChallenge:
		return nil, fmt.Errorf("%w: client certificate for %s", trust.ErrChallengeCancelled, host)
	}
	// An empty certificate continues the handshake without one
	return &tls.Certificate{}, nil
}

// basicRealm reports whether header asks for HTTP Basic authentication, and its realm
func basicRealm(header http.Header) (string, bool) {
	for _, value := range header.Values("WWW-Authenticate") {
		scheme, params, _ := strings.Cut(strings.TrimSpace(value), " ")
		if !strings.EqualFold(scheme, "Basic") {
			continue
		}
		for _, param := range strings.Split(params, ",") {
			key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(key, "realm") {
				return strings.Trim(val, `"`), true
			}
		}
		return "", true
	}
	return "", false
}
