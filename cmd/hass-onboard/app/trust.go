package app

import (
	"log/slog"
	"net"
	"strings"

	"github.com/stacklok/hass-onboard/internal/trust"
)

// newEvaluator answers challenges from command line choices. Server trust is only
// granted for host, and basic credentials are offered once per protection space.
func newEvaluator(host string, trustServer bool, user, password string) trust.Evaluator {
	if !trustServer && user == "" {
		return trust.PerformDefault
	}

	return trust.EvaluatorFunc(func(c trust.Challenge) (trust.Disposition, *trust.Credential) {
		switch c.Kind {
		case trust.ChallengeServerTrust:
			if trustServer && strings.EqualFold(challengeHost(c.Host), host) {
				slog.Warn("Trusting unverified server certificate", "host", c.Host, "error", c.VerifyError)
				return trust.UseCredential, &trust.Credential{TrustServer: true}
			}
		case trust.ChallengeHTTPBasic:
			if user == "" {
				break
			}
			if c.PreviousFailureCount > 0 {
				return trust.CancelChallenge, nil
			}
			return trust.UseCredential, &trust.Credential{User: user, Password: password}
		case trust.ChallengeClientCertificate:
		}
		return trust.PerformDefaultHandling, nil
	})
}

func challengeHost(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
