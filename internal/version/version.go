// ABOUTME: Version information for cablecast
// ABOUTME: Product name, manufacturer and software version constants
package version

const (
	// Version is the software version
	Version = "0.1.0"

	// Product is the product name shown in logs and the TUI
	Product = "Cablecast"

	// Manufacturer identifies who publishes the software
	Manufacturer = "Resonate Protocol"
)
