//go:build windows

package config

import (
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/term"
)

const enableVirtualTerminalProcessing uint32 = 0x4

// EnableColorOutput checks if colorized output is possible and switches
// console to VT100 mode. Consoles before Windows 10 cannot do that.
func EnableColorOutput(stream *os.File) bool {
	if !term.IsTerminal(int(stream.Fd())) || windowsMajorVersion() < 10 {
		return false
	}

	h := windows.Handle(stream.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|enableVirtualTerminalProcessing) == nil
}

func windowsMajorVersion() uint64 {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		return 0
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue("CurrentMajorVersionNumber")
	if err != nil {
		return 0
	}
	return v
}
