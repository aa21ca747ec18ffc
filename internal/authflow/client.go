package authflow

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stacklok/hass-onboard/internal/trust"
)

// NewHTTPClient returns a client for API calls to the server the user signs in to.
// TLS handshakes and Basic 401 answers go through exceptions exactly as they do for the
// browser surfaces, so a certificate or proxy credential accepted for sign-in is also
// accepted for the token exchange. exceptions nil means trust.PerformDefault.
func NewHTTPClient(rootCAs *x509.CertPool, exceptions trust.Evaluator, timeout time.Duration) *http.Client {
	if exceptions == nil {
		exceptions = trust.PerformDefault
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &basicAuthTransport{
			base:       newChallengeTransport(rootCAs, evaluatorChallenger{exceptions}),
			exceptions: exceptions,
		},
	}
}

type evaluatorChallenger struct {
	exceptions trust.Evaluator
}

func (e evaluatorChallenger) DidReceiveChallenge(
	_ context.Context, challenge trust.Challenge,
) (trust.Disposition, *trust.Credential) {
	return e.exceptions.Evaluate(challenge)
}

// basicAuthTransport retries a request answered with a Basic 401 using the credential the
// evaluator offers, up to maxBasicAuthAttempts times.
type basicAuthTransport struct {
	base       http.RoundTripper
	exceptions trust.Evaluator
}

// RoundTrip implements http.RoundTripper
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for failures := 0; err == nil && failures < maxBasicAuthAttempts; failures++ {
		realm, isBasic := basicRealm(resp.Header)
		if resp.StatusCode != http.StatusUnauthorized || !isBasic {
			return resp, nil
		}
		// A body that cannot be replayed leaves the 401 to the caller
		if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			return resp, nil
		}

		disposition, credential := t.exceptions.Evaluate(trust.Challenge{
			Kind:                 trust.ChallengeHTTPBasic,
			Host:                 req.URL.Host,
			Realm:                realm,
			PreviousFailureCount: failures,
		})
		if disposition == trust.CancelChallenge {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: basic authentication for %s", trust.ErrChallengeCancelled, req.URL.Host)
		}
		if disposition != trust.UseCredential || credential == nil {
			return resp, nil
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				_ = resp.Body.Close()
				return nil, bodyErr
			}
			retry.Body = body
		}
		retry.SetBasicAuth(credential.User, credential.Password)

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDiscardedBodyBytes))
		_ = resp.Body.Close()
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}
