//go:build windows

package hostprobe

import (
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

// windowsSDKBinDirs mirrors the teacher's wintool/win_sdks.go UCRT
// discovery: read the installed-roots key, resolve the UCRT bin directory
// for amd64, and hand it back as an extra directory that Detect searches
// for a candidate name only after the plain PATH lookup has not found it.
func windowsSDKBinDirs() []string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows Kits\Installed Roots`, registry.QUERY_VALUE)
	if err != nil {
		return nil
	}
	defer k.Close()

	root, _, err := k.GetStringValue("KitsRoot10")
	if err != nil {
		return nil
	}

	version, _, err := k.GetStringValue("UCRTVersion")
	if err != nil {
		return nil
	}

	return []string{filepath.Join(root, "bin", version, "x64")}
}
