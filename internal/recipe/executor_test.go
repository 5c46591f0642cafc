package recipe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/fleet"
)

func newTestExecutor(t *testing.T, runStep StepRunner, evalCondition ConditionEvaluator) *Executor {
	t.Helper()
	catalog := fleet.NewDriverCatalog(config.CatalogConfig{
		ExecutableOverrides: map[string]string{"chrome": "stub", "firefox": "stub"},
	})
	supervisor := fleet.NewProcessSupervisor(catalog, time.Second)
	health := fleet.NewHealthMonitor(supervisor, catalog, 100*time.Millisecond)
	if evalCondition == nil {
		evalCondition = func(ctx context.Context, sessionID, condition string) (bool, error) { return true, nil }
	}
	return NewExecutor(catalog, health, runStep, evalCondition)
}

func TestExecuteRunsEachStepOncePerBrowser(t *testing.T) {
	var calls []string
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
		calls = append(calls, fmt.Sprintf("%s:%v", action, args["session_id"]))
		return "ok", nil
	}
	e := newTestExecutor(t, runner, nil)

	rec := Recipe{
		Name:     "two-step",
		Browsers: []BrowserSpec{BrowserSpec(config.Chrome), BrowserSpec(config.Firefox)},
		Steps: []RecipeStep{
			{Action: "navigate", Arguments: map[string]interface{}{"url": "https://example.com"}},
			{Action: "screenshot", Arguments: map[string]interface{}{"save_path": "{{browser}}_test.png"}},
		},
	}

	result, err := e.Execute(context.Background(), rec, nil, "", false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Errorf("expected overall success, got %+v", result)
	}
	if len(calls) != 4 {
		t.Fatalf("expected 4 step invocations (2 browsers x 2 steps), got %d: %v", len(calls), calls)
	}
	chromeResult, ok := result.BrowserResults[config.Chrome]
	if !ok || !chromeResult.Success {
		t.Errorf("expected successful chrome result, got %+v", chromeResult)
	}
}

func TestExecuteSubstitutesBrowserPlaceholder(t *testing.T) {
	var savedPath string
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
		if action == "screenshot" {
			savedPath = args["save_path"].(string)
		}
		return nil, nil
	}
	e := newTestExecutor(t, runner, nil)

	rec := Recipe{
		Name:     "shot",
		Browsers: []BrowserSpec{BrowserSpec(config.Chrome)},
		Steps:    []RecipeStep{{Action: "screenshot", Arguments: map[string]interface{}{"save_path": "{{browser}}_test.png"}}},
	}
	if _, err := e.Execute(context.Background(), rec, nil, "", false); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if savedPath != "chrome_test.png" {
		t.Errorf("expected chrome_test.png, got %q", savedPath)
	}
}

func TestExecuteRetriesAndRecordsAttempts(t *testing.T) {
	attempts := 0
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
		attempts++
		return nil, fmt.Errorf("element not found")
	}
	e := newTestExecutor(t, runner, nil)

	rec := Recipe{
		Name:     "retry",
		Browsers: []BrowserSpec{BrowserSpec(config.Chrome)},
		Steps: []RecipeStep{
			{Action: "click", Arguments: map[string]interface{}{"selector": "#missing"}, RetryCount: 2, RetryDelayMS: 1, ContinueOnError: true},
		},
	}
	result, err := e.Execute(context.Background(), rec, nil, "", false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	br := result.BrowserResults[config.Chrome]
	if br.Executed != 1 || br.Total != 1 {
		t.Errorf("expected executed == total == 1 with continue_on_error, got %+v", br)
	}
	if result.Success {
		t.Error("expected overall failure since the step never succeeded")
	}
}

func TestExecuteAbortsWithoutContinueOnError(t *testing.T) {
	var calls int
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) {
		calls++
		if action == "click" {
			return nil, fmt.Errorf("not found")
		}
		return nil, nil
	}
	e := newTestExecutor(t, runner, nil)

	rec := Recipe{
		Name:     "abort",
		Browsers: []BrowserSpec{BrowserSpec(config.Chrome)},
		Steps: []RecipeStep{
			{Action: "click", Arguments: map[string]interface{}{"selector": "#missing"}},
			{Action: "get_text", Arguments: map[string]interface{}{"selector": "#x"}},
		},
	}
	result, err := e.Execute(context.Background(), rec, nil, "", false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	br := result.BrowserResults[config.Chrome]
	if br.Executed != 1 {
		t.Errorf("expected only the failing step executed, got executed=%d", br.Executed)
	}
	if len(br.Steps) != 1 {
		t.Errorf("expected unexecuted steps omitted from results, got %d step results", len(br.Steps))
	}
}

func TestExecuteSkipsStepForDifferentBrowser(t *testing.T) {
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) { return nil, nil }
	e := newTestExecutor(t, runner, nil)

	rec := Recipe{
		Name:     "affinity",
		Browsers: []BrowserSpec{BrowserSpec(config.Chrome)},
		Steps: []RecipeStep{
			{Action: "navigate", Arguments: map[string]interface{}{"url": "https://example.com"}, Browser: config.Firefox},
		},
	}
	result, err := e.Execute(context.Background(), rec, nil, "", false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	br := result.BrowserResults[config.Chrome]
	if len(br.Steps) != 1 || !br.Steps[0].Skipped {
		t.Errorf("expected skipped step result, got %+v", br.Steps)
	}
}

func TestResolveBrowsersFailsForUnavailableNamedBrowser(t *testing.T) {
	runner := func(ctx context.Context, action string, args map[string]interface{}) (interface{}, error) { return nil, nil }
	catalog := fleet.NewDriverCatalog(config.CatalogConfig{})
	supervisor := fleet.NewProcessSupervisor(catalog, time.Second)
	health := fleet.NewHealthMonitor(supervisor, catalog, time.Second)
	e := NewExecutor(catalog, health, runner, nil)

	rec := Recipe{
		Name:     "missing-edge",
		Browsers: []BrowserSpec{BrowserSpec(config.Edge)},
		Steps:    []RecipeStep{{Action: "navigate", Arguments: map[string]interface{}{"url": "x"}}},
	}
	if _, err := e.Execute(context.Background(), rec, nil, "", false); err == nil {
		t.Fatal("expected failure for unavailable named browser")
	}
}
