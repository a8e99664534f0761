// Package machineid derives a stable hardware fingerprint used to bind a
// license token to one installation.
package machineid

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ID returns a 32-hex-char fingerprint of the local machine. The raw hardware
// identifier never leaves the process; only its hash is reported to the
// licensing backend. Falls back to the primary MAC address when the
// platform-specific source is unavailable.
func ID() string {
	raw := rawHardwareID()
	if raw == "" {
		raw = macAddress()
	}
	return Hash(raw)
}

// Hash normalizes a raw identifier into the reported fingerprint format.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:32]
}

func rawHardwareID() string {
	switch runtime.GOOS {
	case "windows":
		out, err := exec.Command("wmic", "csproduct", "get", "uuid").Output()
		if err != nil {
			return ""
		}
		lines := nonEmptyLines(string(out))
		if len(lines) > 1 {
			return lines[len(lines)-1]
		}
		if len(lines) == 1 {
			return lines[0]
		}
		return ""
	case "darwin":
		out, err := exec.Command("sh", "-c",
			"ioreg -rd1 -c IOPlatformExpertDevice | grep IOPlatformSerialNumber").Output()
		if err != nil {
			return ""
		}
		s := string(out)
		if i := strings.LastIndex(s, `"`); i > 0 {
			if j := strings.LastIndex(s[:i], `"`); j >= 0 {
				return s[j+1 : i]
			}
		}
		return ""
	default:
		if b, err := os.ReadFile("/etc/machine-id"); err == nil {
			return strings.TrimSpace(string(b))
		}
		return ""
	}
}

func macAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "unknown-host"
	}
	for _, i := range ifaces {
		if i.Flags&net.FlagLoopback != 0 || len(i.HardwareAddr) == 0 {
			continue
		}
		return i.HardwareAddr.String()
	}
	return "unknown-host"
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}
