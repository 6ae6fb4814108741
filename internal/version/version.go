// ABOUTME: Product and version identification
// ABOUTME: Reported in relay handshakes and by the version command
package version

const (
	// Version is the release version, overridden at build time for releases
	Version = "0.3.0"

	// Product is the name reported to relays and displays
	Product = "recmeter"

	// Manufacturer identifies the project in device info
	Manufacturer = "voicerec"
)

// String returns the product and version as one line
func String() string {
	return Product + " " + Version
}
