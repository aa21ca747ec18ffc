// Package trust defines the authentication challenge contract shared by browser surfaces
// and the caller-supplied exception evaluator.
//
// The evaluation of certificate exceptions is owned by the caller. Browser surfaces only
// describe a challenge and apply the disposition that comes back.
package trust

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
)

// ErrChallengeCancelled is returned by browser surfaces when the evaluator cancels a challenge.
var ErrChallengeCancelled = errors.New("authentication challenge cancelled by evaluator")

// ChallengeKind identifies what the remote side asked for
type ChallengeKind string

const (
	// ChallengeServerTrust is raised when the server certificate did not pass default verification
	ChallengeServerTrust ChallengeKind = "ServerTrust"

	// ChallengeClientCertificate is raised when the server requests a client certificate
	ChallengeClientCertificate ChallengeKind = "ClientCertificate"

	// ChallengeHTTPBasic is raised when the server answers 401 with a Basic WWW-Authenticate header
	ChallengeHTTPBasic ChallengeKind = "HTTPBasic"
)

// Disposition is the evaluator's decision for a challenge
type Disposition int

const (
	// PerformDefaultHandling lets the surface apply its default behaviour
	PerformDefaultHandling Disposition = iota

	// UseCredential accepts the challenge using the returned credential
	UseCredential

	// CancelChallenge aborts the navigation that raised the challenge
	CancelChallenge
)

// String returns the disposition name
func (d Disposition) String() string {
	switch d {
	case PerformDefaultHandling:
		return "PerformDefaultHandling"
	case UseCredential:
		return "UseCredential"
	case CancelChallenge:
		return "CancelChallenge"
	default:
		return "Unknown"
	}
}

// Challenge describes a single authentication challenge raised during a navigation
type Challenge struct {
	// Kind is the type of challenge
	Kind ChallengeKind

	// Host is the host:port that raised the challenge
	Host string

	// Realm is the protection space for HTTPBasic challenges
	Realm string

	// PeerCertificates is the chain presented by the server (ServerTrust only)
	PeerCertificates []*x509.Certificate

	// VerifyError is the result of default certificate verification (ServerTrust only)
	VerifyError error

	// PreviousFailureCount is the number of earlier attempts for the same protection space
	PreviousFailureCount int
}

// Credential answers a challenge
type Credential struct {
	// User and Password answer HTTPBasic challenges
	User     string
	Password string

	// Certificate answers ClientCertificate challenges
	Certificate *tls.Certificate

	// TrustServer accepts the presented chain for ServerTrust challenges
	TrustServer bool
}

// Evaluator decides how a challenge is handled
type Evaluator interface {
	Evaluate(challenge Challenge) (Disposition, *Credential)
}

// EvaluatorFunc adapts a function to the Evaluator interface
type EvaluatorFunc func(challenge Challenge) (Disposition, *Credential)

// Evaluate calls f(challenge)
func (f EvaluatorFunc) Evaluate(challenge Challenge) (Disposition, *Credential) {
	return f(challenge)
}

// PerformDefault is the evaluator used when the caller configured no exceptions
var PerformDefault Evaluator = EvaluatorFunc(func(Challenge) (Disposition, *Credential) {
	return PerformDefaultHandling, nil
})
