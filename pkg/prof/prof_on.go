//go:build profile

// Package prof starts a profiler in binaries built with the profile tag.
package prof

import (
	"github.com/pkg/profile"
)

const Enabled = true

// Start begins profiling into dir. mode is "cpu", "mem" or "block".
func Start(dir, mode string) interface{ Stop() } {
	var m func(*profile.Profile)
	switch mode {
	case "mem":
		m = profile.MemProfile
	case "block":
		m = profile.BlockProfile
	default:
		m = profile.CPUProfile
	}
	return profile.Start(m, profile.ProfilePath(dir), profile.NoShutdownHook)
}
