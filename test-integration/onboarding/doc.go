// Package integration provides end-to-end tests of the onboarding flows: discovery
// against a scripted announcement source, and authorization plus token exchange
// against a fake Home Assistant server through both browser surfaces.
package integration
