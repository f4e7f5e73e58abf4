package joystick

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in platform names.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// AxisNormalizer converts a raw vertical touch coordinate into "distance from
// top" of the bounding square for a given wrapper radius.
type AxisNormalizer func(rawY, wrapperRadius float64) float64

// Native is the identity normalizer used by touch-native hosts.
func Native(rawY, _ float64) float64 {
	return rawY
}

// Flipped mirrors the vertical axis inside the bounding square. Web hosts
// report Y inverted relative to native touch coordinates.
func Flipped(rawY, wrapperRadius float64) float64 {
	return 2*wrapperRadius - rawY
}

var platforms = struct {
	sync.RWMutex
	m map[string]AxisNormalizer
}{
	m: map[string]AxisNormalizer{
		PlatformIOS:     Native,
		PlatformAndroid: Native,
		PlatformWeb:     Flipped,
	},
}

// RegisterPlatform installs (or replaces) the normalizer for a platform name.
func RegisterPlatform(name string, fn AxisNormalizer) {
	if fn == nil {
		panic("joystick: RegisterPlatform with nil normalizer")
	}
	platforms.Lock()
	platforms.m[name] = fn
	platforms.Unlock()
}

// LookupPlatform returns the normalizer registered for name.
func LookupPlatform(name string) (AxisNormalizer, error) {
	platforms.RLock()
	fn, ok := platforms.m[name]
	platforms.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return fn, nil
}

// Platforms lists registered platform names in sorted order.
func Platforms() []string {
	platforms.RLock()
	names := make([]string, 0, len(platforms.m))
	for name := range platforms.m {
		names = append(names, name)
	}
	platforms.RUnlock()
	sort.Strings(names)
	return names
}

// NormalizeY applies the named platform's normalizer to rawY.
// Unregistered platforms are treated as native.
func NormalizeY(rawY, wrapperRadius float64, platform string) float64 {
	fn, err := LookupPlatform(platform)
	if err != nil {
		return Native(rawY, wrapperRadius)
	}
	return fn(rawY, wrapperRadius)
}
