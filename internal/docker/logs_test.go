package docker

import (
	"strings"
	"testing"
	"time"
)

func TestParseLogs(t *testing.T) {
	client := NewClient([]string{"chromedriver"}, 30*time.Second, "")

	tests := []struct {
		name          string
		input         string
		expectedCount int
		checkFirst    func(LogEntry) bool
	}{
		{
			name: "bracketed startup tag followed by a driver error",
			input: `2025-11-26T04:15:44.461522993Z [STARTUP] ChromeDriver was started successfully on port 9515.
2025-11-26T04:15:44.592412799Z [STARTUP] session not created: DevToolsActivePort file doesn't exist`,
			expectedCount: 2,
			checkFirst: func(e LogEntry) bool {
				return e.Level == "INFO" && e.Tag == "STARTUP"
			},
		},
		{
			name:          "simple tagged format",
			input:         `2025-11-26T04:15:44.461522993Z [STARTUP] ChromeDriver was started successfully`,
			expectedCount: 1,
			checkFirst: func(e LogEntry) bool {
				return e.Tag == "STARTUP" && e.Message == "ChromeDriver was started successfully"
			},
		},
		{
			name:          "level-prefixed driver error",
			input:         `2025-11-26T04:15:44.461522993Z ERROR: session not created: probably user data directory is already in use`,
			expectedCount: 1,
			checkFirst: func(e LogEntry) bool {
				return e.Level == "ERROR" && strings.Contains(e.Message, "user data directory")
			},
		},
		{
			name: "python traceback from a Selenium grid sidecar",
			input: `2025-11-26T04:15:44.461522993Z Traceback (most recent call last):
2025-11-26T04:15:44.461522993Z   File "/app/grid.py", line 42, in handler
2025-11-26T04:15:44.461522993Z     result = process(data)
2025-11-26T04:15:44.461522993Z KeyError: 'session_id'`,
			expectedCount: 3, // traceback header folded with the File line, the code line, and the KeyError
			checkFirst: func(e LogEntry) bool {
				return e.Level == "ERROR" && e.Tag == "TRACEBACK"
			},
		},
		{
			name:          "unstructured line inferred as a warning",
			input:         `2025-11-26T04:15:44.461522993Z retrying connection to 127.0.0.1:9515, attempt 2`,
			expectedCount: 1,
			checkFirst: func(e LogEntry) bool {
				return e.Level == "WARNING"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := client.parseLogs("chromedriver", tt.input)

			if len(entries) != tt.expectedCount {
				t.Errorf("expected %d entries, got %d", tt.expectedCount, len(entries))
				for i, e := range entries {
					t.Logf("Entry %d: Level=%s, Tag=%s, Message=%s", i, e.Level, e.Tag, e.Message)
				}
				return
			}

			if tt.checkFirst != nil && len(entries) > 0 {
				if !tt.checkFirst(entries[0]) {
					t.Errorf("first entry check failed: Level=%s, Tag=%s, Message=%s",
						entries[0].Level, entries[0].Tag, entries[0].Message)
				}
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	client := NewClient([]string{"chromedriver"}, 30*time.Second, "")

	logs := []LogEntry{
		{Level: "INFO", Message: "ChromeDriver was started successfully"},
		{Level: "ERROR", Message: "session not created"},
		{Level: "WARNING", Message: "retrying connection"},
		{Level: "DEBUG", Message: "command: POST /session"},
		{Level: "CRITICAL", Message: "driver process exited unexpectedly"},
	}

	filtered := client.FilterErrors(logs)

	if len(filtered) != 3 {
		t.Errorf("expected 3 error/warning entries, got %d", len(filtered))
	}

	levels := make(map[string]bool)
	for _, l := range filtered {
		levels[l.Level] = true
	}

	if !levels["ERROR"] || !levels["WARNING"] || !levels["CRITICAL"] {
		t.Error("filtered results should include ERROR, WARNING, and CRITICAL")
	}
}
