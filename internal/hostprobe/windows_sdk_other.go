//go:build !windows

package hostprobe

// windowsSDKBinDirs is a no-op off Windows: MSVC discovery via the
// registry only applies there, and cc/gcc/clang are expected on PATH
// everywhere else.
func windowsSDKBinDirs() []string { return nil }
