// Package authflow drives the Home Assistant authorization handshake through a browser surface.
//
// An Interceptor loads the authorization page in a Browser and watches every navigation
// the browser attempts. The first navigation whose scheme starts with the redirect scheme
// prefix resolves the Outcome with that URL and is never followed. User cancellation and
// navigation failures reject the Outcome instead. The Outcome settles at most once; nothing
// here enforces a timeout, so an abandoned flow simply stays pending.
//
// Two Browser implementations are provided: Navigator, a headless surface built on net/http,
// and ProxySurface, which opens the user's browser on a loopback reverse proxy so that
// redirects can still be observed.
package authflow
