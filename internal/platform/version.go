// Package platform reports the operating system version returned by
// getPlatformVersion.
package platform

// Version returns a human-readable OS name and version, such as
// "Linux 6.1.0" or "Windows 10.0.19045".
func Version() string {
	return version()
}
