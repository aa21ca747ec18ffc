package authflow_test

import (
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/hass-onboard/internal/authflow"
	"github.com/stacklok/hass-onboard/internal/trust"
)

// recordingEvaluator answers every challenge with answer and keeps what it was asked
type recordingEvaluator struct {
	mu     sync.Mutex
	seen   []trust.Challenge
	answer func(trust.Challenge) (trust.Disposition, *trust.Credential)
}

func (e *recordingEvaluator) Evaluate(c trust.Challenge) (trust.Disposition, *trust.Credential) {
	e.mu.Lock()
	e.seen = append(e.seen, c)
	e.mu.Unlock()
	return e.answer(c)
}

func (e *recordingEvaluator) challenges() []trust.Challenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]trust.Challenge(nil), e.seen...)
}

func TestNewHTTPClient_ServerTrust(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	trusting := &recordingEvaluator{answer: func(c trust.Challenge) (trust.Disposition, *trust.Credential) {
		if c.Kind == trust.ChallengeServerTrust {
			return trust.UseCredential, &trust.Credential{TrustServer: true}
		}
		return trust.PerformDefaultHandling, nil
	}}
	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	tests := []struct {
		name           string
		rootCAs        *x509.CertPool
		exceptions     trust.Evaluator
		wantErr        bool
		wantChallenged bool
	}{
		{
			name:    "default handling rejects an unknown authority",
			wantErr: true,
		},
		{
			name:           "evaluator accepts the certificate",
			exceptions:     trusting,
			wantChallenged: true,
		},
		{
			name:       "configured root verifies without a challenge",
			rootCAs:    pool,
			exceptions: &recordingEvaluator{answer: trusting.answer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := authflow.NewHTTPClient(tt.rootCAs, tt.exceptions, 5*time.Second)
			resp, err := client.Get(srv.URL)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "certificate")
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = resp.Body.Close() })
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			rec, ok := tt.exceptions.(*recordingEvaluator)
			require.True(t, ok)
			if tt.wantChallenged {
				require.NotEmpty(t, rec.challenges())
				assert.Equal(t, trust.ChallengeServerTrust, rec.challenges()[0].Kind)
				assert.Equal(t, "127.0.0.1", rec.challenges()[0].Host)
			} else {
				assert.Empty(t, rec.challenges())
			}
		})
	}
}

func TestNewHTTPClient_BasicAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || user != "proxy" || password != "secret" {
			w.Header().Set("WWW-Authenticate", `Basic realm="edge"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	offer := func(password string) func(trust.Challenge) (trust.Disposition, *trust.Credential) {
		return func(c trust.Challenge) (trust.Disposition, *trust.Credential) {
			if c.PreviousFailureCount > 0 {
				return trust.CancelChallenge, nil
			}
			return trust.UseCredential, &trust.Credential{User: "proxy", Password: password}
		}
	}

	tests := []struct {
		name           string
		answer         func(trust.Challenge) (trust.Disposition, *trust.Credential)
		wantStatus     int
		wantCancelled  bool
		wantChallenges int
	}{
		{
			name:           "credential replays the body",
			answer:         offer("secret"),
			wantStatus:     http.StatusOK,
			wantChallenges: 1,
		},
		{
			name:           "rejected credential is cancelled on the second challenge",
			answer:         offer("wrong"),
			wantCancelled:  true,
			wantChallenges: 2,
		},
		{
			name: "default handling returns the 401",
			answer: func(trust.Challenge) (trust.Disposition, *trust.Credential) {
				return trust.PerformDefaultHandling, nil
			},
			wantStatus:     http.StatusUnauthorized,
			wantChallenges: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recordingEvaluator{answer: tt.answer}
			client := authflow.NewHTTPClient(nil, rec, 5*time.Second)

			resp, err := client.Post(srv.URL, "application/x-www-form-urlencoded", strings.NewReader("code=abc"))
			assert.Len(t, rec.challenges(), tt.wantChallenges)
			if tt.wantCancelled {
				require.ErrorIs(t, err, trust.ErrChallengeCancelled)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = resp.Body.Close() })
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, "code=abc", string(body))
				assert.Equal(t, "edge", rec.challenges()[0].Realm)
			}
		})
	}
}
