// Package version provides version information for the flight-deals application.
package version

// Version is the current version of the flight-deals application.
const Version = "0.3.0"

// AgentString returns the User-Agent sent to upstream quote providers.
func AgentString() string {
	return "flight-deals/" + Version
}
