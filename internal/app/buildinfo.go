package app

import "fmt"

// Build information populated via -ldflags at build time.
var (
    BuildVersion = "0.0.0-dev"
    BuildCommit  = "unknown"
)

// DefaultUserAgent identifies the tool to listing and storage servers.
func DefaultUserAgent() string {
    return fmt.Sprintf("minutewatch/%s (+https://github.com/hyperifyio/minutewatch)", BuildVersion)
}
