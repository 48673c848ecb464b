package runner

import "strings"

// Suggest derives a likely fix from a failed command and its stderr.
// Returns "" when nothing useful can be said.
func Suggest(command, stderr string) string {
	if strings.Contains(stderr, "docker") || strings.Contains(stderr, "Docker") {
		switch {
		case strings.Contains(stderr, "not running") || strings.Contains(stderr, "Cannot connect"):
			return "Docker daemon is not running. Start Docker Desktop or the Docker service."
		case strings.Contains(stderr, "No such container"):
			return "Container not found. Try running 'up' first to start the services."
		case strings.Contains(stderr, "port is already allocated"):
			return "Port conflict. Stop the conflicting service or use a different port."
		}
	}

	if strings.Contains(stderr, "Permission denied") {
		return "Permission denied. Check file permissions or run with appropriate access."
	}

	if strings.Contains(stderr, "command not found") || strings.Contains(stderr, "not found") {
		switch {
		case strings.Contains(command, "make"):
			return "'make' command not found. Install build-essential or make."
		case strings.Contains(command, "just"):
			return "'just' command not found. Install just: cargo install just"
		}
		return "Required command not found. Check PATH and dependencies."
	}

	if strings.Contains(stderr, "No such file") {
		if strings.Contains(command, "run.sh") {
			return "run.sh not found. Verify the working directory is correct."
		}
		return "File not found. Check the project path and file existence."
	}

	if strings.Contains(stderr, "No rule to make target") {
		return "Target not found in Makefile. List tasks to see available targets."
	}

	if strings.Contains(stderr, "Justfile does not contain recipe") ||
		strings.Contains(stderr, "Unknown recipe") {
		return "Recipe not found in justfile. List tasks to see available recipes."
	}

	return ""
}
