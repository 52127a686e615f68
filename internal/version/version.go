// ABOUTME: Build and product identification constants
// ABOUTME: Reported to controllers in the client/hello device_info block
package version

const (
	// Product is the product name reported in device_info
	Product = "Sendspin Player"

	// Manufacturer is the manufacturer reported in device_info
	Manufacturer = "Sendspin"

	// Version is the software version reported in device_info
	Version = "0.3.0"
)
