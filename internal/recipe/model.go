// Package recipe implements declarative, parameterised automation scripts:
// parsing, validation, parameter substitution, and cross-browser execution.
package recipe

import (
	"encoding/json"
	"fmt"
	"strings"

	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/fleet"
)

// BrowserSpec is one entry of a recipe's browsers list: a concrete kind,
// or the "auto" sentinel resolved at execution time.
type BrowserSpec string

const AutoBrowser BrowserSpec = "auto"

// ParameterSpec describes one named recipe parameter.
type ParameterSpec struct {
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default_value,omitempty"`
	Required    bool        `json:"required"`
}

// RecipeStep is one declarative tool invocation within a recipe.
type RecipeStep struct {
	Name            string                 `json:"name,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Action          string                 `json:"action"`
	Arguments       map[string]interface{} `json:"arguments,omitempty"`
	ContinueOnError bool                   `json:"continue_on_error,omitempty"`
	RetryCount      uint32                 `json:"retry_count,omitempty"`
	RetryDelayMS    uint64                 `json:"retry_delay_ms,omitempty"`
	Condition       string                 `json:"condition,omitempty"`
	SessionID       string                 `json:"session_id,omitempty"`
	Browser         config.BrowserKind     `json:"browser,omitempty"`
}

// Recipe is the top-level declarative automation document.
type Recipe struct {
	Name        string                   `json:"name"`
	Version     string                   `json:"version"`
	Description string                   `json:"description,omitempty"`
	Author      string                   `json:"author,omitempty"`
	CreatedAt   string                   `json:"created_at,omitempty"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty"`
	Browsers    []BrowserSpec            `json:"browsers"`
	Steps       []RecipeStep             `json:"steps"`
}

// requiredArguments lists, per known action, the argument keys validate
// treats as mandatory. Unknown actions are permitted as an extension
// point and skip this check entirely.
var requiredArguments = map[string][]string{
	"navigate":              {"url"},
	"click":                 {"selector"},
	"wait_for_element":      {"selector"},
	"get_text":              {"selector"},
	"hover":                 {"selector"},
	"scroll_to_element":     {"selector"},
	"send_keys":             {"selector", "text"},
	"execute_script":        {"script"},
	"wait_for_condition":    {"condition"},
	"get_attribute":         {"attribute"},
	"get_property":          {"property"},
	"fill_and_submit_form":  {"fields", "submit_selector"},
	"login_form":            {"username", "password"},
}

// Parse decodes a recipe from its JSON representation.
func Parse(data []byte) (Recipe, error) {
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return Recipe{}, fleet.NewError(fleet.InvalidRecipe, err, "malformed recipe JSON")
	}
	return r, nil
}

// Serialize encodes a recipe back to JSON.
func Serialize(r Recipe) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Validate checks structural and semantic well-formedness.
func Validate(r Recipe) error {
	if strings.TrimSpace(r.Name) == "" {
		return fleet.NewError(fleet.InvalidRecipe, nil, "recipe name must not be empty")
	}
	if len(r.Steps) == 0 {
		return fleet.NewError(fleet.InvalidRecipe, nil, "recipe %q must declare at least one step", r.Name)
	}
	for _, b := range r.Browsers {
		if !isKnownBrowserSpec(b) {
			return fleet.NewError(fleet.InvalidRecipe, nil, "recipe %q names unknown browser %q", r.Name, b)
		}
	}
	for i, step := range r.Steps {
		if strings.TrimSpace(step.Action) == "" {
			return fleet.NewError(fleet.InvalidRecipe, nil, "recipe %q step %d has an empty action", r.Name, i)
		}
		required, known := requiredArguments[step.Action]
		if !known {
			continue
		}
		for _, key := range required {
			if _, ok := step.Arguments[key]; !ok {
				return fleet.NewError(fleet.InvalidRecipe, nil, "recipe %q step %d (%s) is missing required argument %q", r.Name, i, step.Action, key)
			}
		}
	}
	return nil
}

func isKnownBrowserSpec(b BrowserSpec) bool {
	switch b {
	case AutoBrowser, BrowserSpec(config.Chrome), BrowserSpec(config.Firefox), BrowserSpec(config.Edge):
		return true
	default:
		return false
	}
}

// substituteString walks every ${name}
// occurrence in s, rather than compiling a regexp, because names are
// restricted to what callers declare and recipes are short.
func substituteString(s string, params map[string]string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				out.WriteString(s[i:])
				break
			}
			name := s[i+2 : i+2+end]
			value, ok := params[name]
			if !ok {
				return "", fleet.NewError(fleet.InvalidRecipe, nil, "parameter %q has no supplied value", name)
			}
			out.WriteString(value)
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String(), nil
}

// Substitute replaces every ${name} occurrence in string-valued arguments
// and in each step's condition with the corresponding entry of params.
// Parameters declared required but absent from params are an error;
// parameters with declared defaults fall back to them.
func Substitute(r Recipe, params map[string]interface{}) (Recipe, error) {
	resolved := make(map[string]string, len(r.Parameters))
	for name, spec := range r.Parameters {
		if v, ok := params[name]; ok {
			resolved[name] = fmt.Sprintf("%v", v)
			continue
		}
		if spec.Required {
			return Recipe{}, fleet.NewError(fleet.InvalidRecipe, nil, "required parameter %q was not supplied", name)
		}
		if spec.Default != nil {
			resolved[name] = fmt.Sprintf("%v", spec.Default)
		}
	}
	for name, v := range params {
		if _, already := resolved[name]; !already {
			resolved[name] = fmt.Sprintf("%v", v)
		}
	}

	out := r
	out.Steps = make([]RecipeStep, len(r.Steps))
	for i, step := range r.Steps {
		substituted, err := substituteStep(step, resolved)
		if err != nil {
			return Recipe{}, err
		}
		out.Steps[i] = substituted
	}
	return out, nil
}

func substituteStep(step RecipeStep, params map[string]string) (RecipeStep, error) {
	out := step
	if step.Condition != "" {
		cond, err := substituteString(step.Condition, params)
		if err != nil {
			return RecipeStep{}, err
		}
		out.Condition = cond
	}
	if len(step.Arguments) > 0 {
		args := make(map[string]interface{}, len(step.Arguments))
		for k, v := range step.Arguments {
			sv, ok := v.(string)
			if !ok {
				args[k] = v
				continue
			}
			substituted, err := substituteString(sv, params)
			if err != nil {
				return RecipeStep{}, err
			}
			args[k] = substituted
		}
		out.Arguments = args
	}
	return out, nil
}
