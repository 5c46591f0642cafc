package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/fleet"
)

// StepRunner executes one tool action against a session, the same entry
// point a transport-driven tool call would use. The executor is given one
// by its caller so this package never imports the dispatcher.
type StepRunner func(ctx context.Context, action string, arguments map[string]interface{}) (interface{}, error)

// ConditionEvaluator evaluates a non-trivial recipe condition (anything
// other than empty or case-insensitive "true") as a JavaScript expression
// in the session's active page, returning its truthy coercion.
type ConditionEvaluator func(ctx context.Context, sessionID, condition string) (bool, error)

// StepResult is the outcome of one executed (or skipped) recipe step.
type StepResult struct {
	Index         int                `json:"index"`
	Action        string             `json:"action"`
	Success       bool               `json:"success"`
	Attempts      uint32             `json:"attempts"`
	DurationMS    int64              `json:"duration_ms"`
	Result        interface{}        `json:"result,omitempty"`
	Error         string             `json:"error,omitempty"`
	Skipped       bool               `json:"skipped,omitempty"`
	SkippedReason string             `json:"skipped_reason,omitempty"`
	Browser       config.BrowserKind `json:"browser,omitempty"`
}

// BrowserResult aggregates one browser's run through the recipe.
type BrowserResult struct {
	Browser      config.BrowserKind `json:"browser"`
	Success      bool               `json:"success"`
	Total        int                `json:"total"`
	Executed     int                `json:"executed"`
	Failed       int                `json:"failed"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Steps        []StepResult       `json:"steps"`
}

// ExecutionResult is the immutable, aggregated outcome of one recipe run.
type ExecutionResult struct {
	Success        bool                                  `json:"success"`
	Total          int                                    `json:"total"`
	Executed       int                                    `json:"executed"`
	Failed         int                                    `json:"failed"`
	ErrorMessage   string                                 `json:"error_message,omitempty"`
	BrowserResults map[config.BrowserKind]BrowserResult `json:"browser_results"`
}

// Executor runs a Recipe across its resolved browser set.
type Executor struct {
	catalog       *fleet.DriverCatalog
	health        *fleet.HealthMonitor
	runStep       StepRunner
	evalCondition ConditionEvaluator
}

// NewExecutor builds an Executor. runStep and evalCondition are supplied
// by the MCP layer so this package stays independent of the dispatcher.
func NewExecutor(catalog *fleet.DriverCatalog, health *fleet.HealthMonitor, runStep StepRunner, evalCondition ConditionEvaluator) *Executor {
	return &Executor{catalog: catalog, health: health, runStep: runStep, evalCondition: evalCondition}
}

// resolveBrowsers replaces each "auto" entry with the first
// catalog-discoverable kind (Chrome, then Firefox, then Edge), passes
// named entries through only if the host has them, and collapses
// duplicates.
func (e *Executor) resolveBrowsers(specs []BrowserSpec) ([]config.BrowserKind, error) {
	if len(specs) == 0 {
		specs = []BrowserSpec{AutoBrowser}
	}

	var resolved []config.BrowserKind
	seen := make(map[config.BrowserKind]bool)

	for _, spec := range specs {
		var kind config.BrowserKind
		if spec == AutoBrowser {
			found := false
			for _, candidate := range e.catalog.Kinds() {
				if _, err := e.catalog.ResolveExecutable(candidate); err == nil {
					kind = candidate
					found = true
					break
				}
			}
			if !found {
				return nil, fleet.NewError(fleet.NoAvailableDriver, nil, "no browser could be auto-discovered on this host")
			}
		} else {
			kind = config.BrowserKind(spec)
			if _, err := e.catalog.ResolveExecutable(kind); err != nil {
				return nil, fleet.NewError(fleet.InvalidRecipe, err, "recipe names browser %q which is not available on this host", kind)
			}
		}
		if !seen[kind] {
			seen[kind] = true
			resolved = append(resolved, kind)
		}
	}
	return resolved, nil
}

// Execute runs rec (after substituting params) across its resolved
// browser set and returns the aggregated outcome.
func (e *Executor) Execute(ctx context.Context, rec Recipe, params map[string]interface{}, contextSessionID string, contextContinueOnError bool) (ExecutionResult, error) {
	substituted, err := Substitute(rec, params)
	if err != nil {
		return ExecutionResult{}, err
	}
	if err := Validate(substituted); err != nil {
		return ExecutionResult{}, err
	}

	kinds, err := e.resolveBrowsers(substituted.Browsers)
	if err != nil {
		return ExecutionResult{}, err
	}

	if err := e.health.Refresh(ctx); err != nil {
		return ExecutionResult{}, err
	}

	result := ExecutionResult{
		Success:        true,
		BrowserResults: make(map[config.BrowserKind]BrowserResult, len(kinds)),
	}

	var firstError string
	for _, kind := range kinds {
		browserSessionID := string(kind) + "_recipe_session"
		br := e.runBrowser(ctx, substituted.Steps, kind, browserSessionID, contextSessionID, contextContinueOnError)

		result.Total += br.Total
		result.Executed += br.Executed
		result.Failed += br.Failed
		result.BrowserResults[kind] = br
		if !br.Success {
			result.Success = false
			if firstError == "" {
				firstError = br.ErrorMessage
			}
		}
	}
	result.ErrorMessage = firstError

	return result, nil
}

func (e *Executor) runBrowser(ctx context.Context, steps []RecipeStep, browser config.BrowserKind, browserSessionID, contextSessionID string, contextContinueOnError bool) BrowserResult {
	br := BrowserResult{Browser: browser, Success: true, Total: len(steps)}

	aborted := false
	for idx, step := range steps {
		if aborted {
			break
		}

		if step.Browser != "" && step.Browser != browser {
			br.Steps = append(br.Steps, StepResult{
				Index: idx, Action: step.Action, Skipped: true,
				SkippedReason: "step for different browser", Browser: browser,
			})
			continue
		}

		effectiveSessionID := browserSessionID
		if step.SessionID != "" {
			effectiveSessionID = step.SessionID
		} else if contextSessionID != "" {
			effectiveSessionID = contextSessionID
		}

		if step.Condition != "" {
			truthy, err := e.evaluateCondition(ctx, effectiveSessionID, step.Condition)
			if err != nil {
				br.Steps = append(br.Steps, StepResult{
					Index: idx, Action: step.Action, Success: false,
					Error: fleet.NewError(fleet.ConditionError, err, "condition evaluation failed").Error(),
					Browser: browser,
				})
				br.Executed++
				br.Failed++
				br.Success = false
				if br.ErrorMessage == "" {
					br.ErrorMessage = fmt.Sprintf("step %d (%s): condition error: %v", idx, step.Action, err)
				}
				if !(step.ContinueOnError || contextContinueOnError) {
					aborted = true
				}
				continue
			}
			if !truthy {
				br.Steps = append(br.Steps, StepResult{
					Index: idx, Action: step.Action, Skipped: true,
					SkippedReason: "condition evaluated false", Browser: browser,
				})
				continue
			}
		}

		args := mergeArguments(step.Arguments, effectiveSessionID, browser)

		attemptsAllowed := step.RetryCount + 1
		retryDelay := time.Duration(step.RetryDelayMS) * time.Millisecond
		if step.RetryDelayMS == 0 {
			retryDelay = time.Second
		}

		var lastErr error
		var stepResult interface{}
		start := time.Now()
		var attempt uint32
		for attempt = 1; attempt <= attemptsAllowed; attempt++ {
			stepResult, lastErr = e.runStep(ctx, step.Action, args)
			if lastErr == nil {
				break
			}
			if attempt >= attemptsAllowed {
				break
			}
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(retryDelay):
				continue
			}
			break
		}
		duration := time.Since(start)

		sr := StepResult{
			Index: idx, Action: step.Action, Attempts: attempt, DurationMS: duration.Milliseconds(), Browser: browser,
		}

		br.Executed++
		if lastErr == nil {
			sr.Success = true
			sr.Result = stepResult
		} else {
			sr.Success = false
			sr.Error = fleet.NewError(fleet.StepFailure, lastErr, "step %q failed after %d attempt(s)", step.Action, attempt).Error()
			br.Failed++
			br.Success = false
			if br.ErrorMessage == "" {
				br.ErrorMessage = sr.Error
			}
			if !(step.ContinueOnError || contextContinueOnError) {
				aborted = true
			}
		}
		br.Steps = append(br.Steps, sr)
	}

	return br
}

func (e *Executor) evaluateCondition(ctx context.Context, sessionID, condition string) (bool, error) {
	trimmed := strings.TrimSpace(condition)
	if trimmed == "" || strings.EqualFold(trimmed, "true") {
		return true, nil
	}
	return e.evalCondition(ctx, sessionID, condition)
}

// mergeArguments overlays session_id onto a copy of the step's arguments
// and textually replaces "{{browser}}" in the JSON-serialised blob, per
// the recipe execution model's argument-merge rule.
func mergeArguments(stepArgs map[string]interface{}, sessionID string, browser config.BrowserKind) map[string]interface{} {
	merged := make(map[string]interface{}, len(stepArgs)+1)
	for k, v := range stepArgs {
		merged[k] = v
	}
	merged["session_id"] = sessionID

	blob, err := json.Marshal(merged)
	if err != nil {
		return merged
	}
	replaced := strings.ReplaceAll(string(blob), "{{browser}}", string(browser))

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(replaced), &out); err != nil {
		return merged
	}
	return out
}
