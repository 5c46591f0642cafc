// Package docker shells out to the docker CLI to correlate a WebDriver
// session's failures with the backing driver/browser containers' logs.
package docker

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// LogEntry is a parsed line from a driver or browser container's log.
type LogEntry struct {
	Container string    `json:"container"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`   // ERROR, WARNING, INFO, DEBUG, CRITICAL
	Tag       string    `json:"tag"`     // [STARTUP], [AUDIT], [LIFESPAN], etc.
	Message   string    `json:"message"` // The actual log message
	Raw       string    `json:"raw"`     // Original unparsed line
}

// Client shells out to docker logs for the configured driver containers.
type Client struct {
	containers []string
	logWindow  time.Duration
	host       string
}

// NewClient creates a Docker log client for the given driver/browser
// container names (e.g. "chromedriver", "geckodriver-selenoid").
func NewClient(containers []string, logWindow time.Duration, host string) *Client {
	return &Client{
		containers: containers,
		logWindow:  logWindow,
		host:       host,
	}
}

// QueryLogs fetches logs from every configured driver container since the
// given time, for correlation with a get_console_logs call.
func (c *Client) QueryLogs(ctx context.Context, since time.Time) ([]LogEntry, error) {
	var allLogs []LogEntry

	for _, container := range c.containers {
		logs, err := c.queryContainer(ctx, container, since)
		if err != nil {
			// A single unreachable container must not fail the whole
			// correlation query; continue with the rest.
			continue
		}
		allLogs = append(allLogs, logs...)
	}

	return allLogs, nil
}

// queryContainer fetches logs from a single driver container.
func (c *Client) queryContainer(ctx context.Context, container string, since time.Time) ([]LogEntry, error) {
	args := []string{"logs", "--timestamps"}
	args = append(args, "--since", since.Format(time.RFC3339))

	if c.host != "" {
		args = append([]string{"-H", c.host}, args...)
	}

	args = append(args, container)

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker logs %s: %w (output: %s)", container, err, string(output))
	}

	return c.parseLogs(container, string(output)), nil
}

// parseLogs parses a driver container's log output into structured
// entries. chromedriver/geckodriver and their supporting browser
// processes log in a mix of formats, so parseLogs recognizes the ones
// seen in practice:
//  1. Docker timestamp prefix: "2025-01-25T12:03:45.123456789Z message"
//  2. Bracketed tag format: "[STARTUP] message"
//  3. Level-prefixed format: "LEVEL: message"
//  4. A Python traceback, folded into a single ERROR entry
func (c *Client) parseLogs(container string, output string) []LogEntry {
	var entries []LogEntry

	dockerTsPattern := regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T[\d:.]+Z?)\s+(.*)$`)
	tagPattern := regexp.MustCompile(`^\[([A-Z_]+)\]\s+(.*)$`)
	levelPattern := regexp.MustCompile(`^(ERROR|WARNING|INFO|DEBUG|CRITICAL):\s*(.*)$`)
	tracebackStart := regexp.MustCompile(`^Traceback \(most recent call last\):`)
	exceptionLine := regexp.MustCompile(`^(\w+Error|\w+Exception):\s*(.*)$`)

	scanner := bufio.NewScanner(strings.NewReader(output))
	var currentTraceback strings.Builder
	inTraceback := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry := LogEntry{
			Container: container,
			Timestamp: time.Now(),
			Level:     "INFO",
			Raw:       line,
		}

		remaining := line

		if matches := dockerTsPattern.FindStringSubmatch(line); len(matches) == 3 {
			if ts, err := time.Parse(time.RFC3339Nano, matches[1]); err == nil {
				entry.Timestamp = ts
			} else if ts, err := time.Parse("2006-01-02T15:04:05.999999999Z07:00", matches[1]); err == nil {
				entry.Timestamp = ts
			}
			remaining = matches[2]
		}

		if tracebackStart.MatchString(remaining) {
			inTraceback = true
			currentTraceback.Reset()
			currentTraceback.WriteString(remaining)
			continue
		}

		if inTraceback {
			if exceptionLine.MatchString(remaining) {
				currentTraceback.WriteString("\n")
				currentTraceback.WriteString(remaining)
				entry.Level = "ERROR"
				entry.Tag = "TRACEBACK"
				entry.Message = currentTraceback.String()
				entries = append(entries, entry)
				inTraceback = false
				currentTraceback.Reset()
				continue
			} else if strings.HasPrefix(remaining, " ") || strings.HasPrefix(remaining, "\t") || strings.HasPrefix(remaining, "File ") {
				currentTraceback.WriteString("\n")
				currentTraceback.WriteString(remaining)
				continue
			} else {
				if currentTraceback.Len() > 0 {
					entry.Level = "ERROR"
					entry.Tag = "TRACEBACK"
					entry.Message = currentTraceback.String()
					entries = append(entries, entry)
				}
				inTraceback = false
				currentTraceback.Reset()
				// Fall through to process current line
			}
		}

		if matches := tagPattern.FindStringSubmatch(remaining); len(matches) == 3 {
			entry.Tag = matches[1]
			entry.Message = matches[2]
			entry.Level = inferLevelFromTag(matches[1], matches[2])
			entries = append(entries, entry)
			continue
		}

		if matches := levelPattern.FindStringSubmatch(remaining); len(matches) == 3 {
			entry.Level = strings.ToUpper(matches[1])
			entry.Message = matches[2]
			entries = append(entries, entry)
			continue
		}

		entry.Level = inferLevelFromMessage(remaining)
		entry.Message = remaining
		entries = append(entries, entry)
	}

	if inTraceback && currentTraceback.Len() > 0 {
		entries = append(entries, LogEntry{
			Container: container,
			Timestamp: time.Now(),
			Level:     "ERROR",
			Tag:       "TRACEBACK",
			Message:   currentTraceback.String(),
			Raw:       currentTraceback.String(),
		})
	}

	return entries
}

// inferLevelFromTag determines log level from bracketed log tags.
func inferLevelFromTag(tag, message string) string {
	errorTags := map[string]bool{
		"ERROR": true, "CRITICAL": true, "FATAL": true, "EXCEPTION": true,
	}
	warningTags := map[string]bool{
		"WARNING": true, "WARN": true,
	}

	if errorTags[tag] {
		return "ERROR"
	}
	if warningTags[tag] {
		return "WARNING"
	}

	return inferLevelFromMessage(message)
}

// inferLevelFromMessage guesses log level from message content, covering
// both driver-reported failures (session/port conflicts, crashes) and the
// underlying browser process's own error vocabulary.
func inferLevelFromMessage(message string) string {
	msg := strings.ToLower(message)

	errorPatterns := []string{
		"error", "exception", "failed", "failure", "traceback",
		"critical", "fatal", "panic", "crash", "segfault",
		"session not created", "chrome not reachable", "devtoolsactiveport",
		"connectionerror", "timeout", "refused", "denied",
	}
	for _, pattern := range errorPatterns {
		if strings.Contains(msg, pattern) {
			return "ERROR"
		}
	}

	warningPatterns := []string{
		"warning", "warn", "deprecated", "slow", "retry",
		"fallback", "degraded", "skipping", "missing",
	}
	for _, pattern := range warningPatterns {
		if strings.Contains(msg, pattern) {
			return "WARNING"
		}
	}

	return "INFO"
}

// FilterErrors returns only ERROR, WARNING and CRITICAL level logs, the
// subset of container logs get_console_logs returns when errors_only is set.
func (c *Client) FilterErrors(logs []LogEntry) []LogEntry {
	var errors []LogEntry
	for _, log := range logs {
		if log.Level == "ERROR" || log.Level == "WARNING" || log.Level == "CRITICAL" {
			errors = append(errors, log)
		}
	}
	return errors
}
