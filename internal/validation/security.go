// Package validation checks configuration values that end up on a command
// line or in a file path, preventing command injection and path traversal.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var shellMetachars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r", "\x00"}

// ValidateArgument validates a command line argument passed to webpack.
// Arguments are never interpreted by a shell, but a metacharacter in one
// almost always means a shell command line was pasted into the config.
func ValidateArgument(arg string) error {
	for _, char := range shellMetachars {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	return nil
}

// ValidateExecutable validates the program part of a configured command.
func ValidateExecutable(executable []string) error {
	if len(executable) == 0 || strings.TrimSpace(executable[0]) == "" {
		return fmt.Errorf("executable cannot be empty")
	}

	for _, arg := range executable {
		if err := ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid executable '%s': %w", arg, err)
		}
	}

	return nil
}

var restrictedPaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidatePath validates a configured file or directory path.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	cleanPathLower := strings.ToLower(filepath.ToSlash(cleanPath))
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(cleanPathLower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "\x00"} {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidatePattern validates a file name glob such as "*.html".
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if strings.ContainsRune(pattern, '/') || strings.ContainsRune(pattern, filepath.Separator) {
		return fmt.Errorf("pattern %q must match file names, not paths", pattern)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	return nil
}

// ValidateFileExtension validates an extension listed without the dot.
func ValidateFileExtension(ext string) error {
	if ext == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if strings.HasPrefix(ext, ".") {
		return fmt.Errorf("extension %q must not start with a dot", ext)
	}
	if strings.ContainsAny(ext, `/\*?[] `) {
		return fmt.Errorf("extension %q contains invalid characters", ext)
	}

	return nil
}
