package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration for log output.
//
// Formatting rules:
//   - Below one second: milliseconds with up to 3 decimals (e.g. "12.5ms")
//   - Below one minute: seconds with up to 2 decimals (e.g. "45.67s")
//   - Otherwise: compound hours/minutes/seconds (e.g. "1h 2m 3s", "4m 5s")
//
// Proving runs take seconds to hours, so finer units are not needed.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	if d == 0 {
		return "0s"
	}
	if d < time.Second {
		return formatFloat(float64(d)/float64(time.Millisecond), 3) + "ms"
	}
	if d < time.Minute {
		return formatFloat(d.Seconds(), 2) + "s"
	}

	d = d.Round(time.Second)
	hours := int(d / time.Hour)
	mins := int(d/time.Minute) % 60
	secs := int(d/time.Second) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	if secs > 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

// formatFloat formats a float with up to maxDecimals, trimming trailing zeros.
func formatFloat(value float64, maxDecimals int) string {
	s := fmt.Sprintf("%.*f", maxDecimals, value)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// FormatNumber formats a number with commas for readability
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// FormatRate formats a rate (items per second) with appropriate units
func FormatRate(count int64, duration time.Duration) string {
	if duration.Seconds() <= 0 {
		return "0/s"
	}
	rate := float64(count) / duration.Seconds()
	if rate >= 1000000 {
		return fmt.Sprintf("%.2fM/s", rate/1000000)
	}
	if rate >= 1000 {
		return fmt.Sprintf("%.2fK/s", rate/1000)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file or directory exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir checks if path is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsExecutable checks if path is a regular file with an execute bit set.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// CheckDirWritable verifies that a file can be created inside dir.
func CheckDirWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(filepath.Clean(name))
}
