// Package discovery finds Home Assistant instances on the local network.
//
// A Collector runs one discovery session at a time: it restarts the browse and
// advertise services, collects the instances announced during a fixed window and
// hands the list, sorted by location name, to a continuation. All list mutations
// happen on the session's run loop, so announcements can arrive from any goroutine.
//
// Bonjour implements the Service contract on top of mDNS / DNS-SD.
package discovery
