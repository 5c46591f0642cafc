package mcp

import (
	"context"

	"webdriver-fleet-mcp/internal/config"
	"webdriver-fleet-mcp/internal/fleet"
	"webdriver-fleet-mcp/internal/recipe"
)

// CreateRecipeTool validates and persists a recipe document.
type CreateRecipeTool struct{ store *recipe.Store }

func (t *CreateRecipeTool) Name() string        { return "create_recipe" }
func (t *CreateRecipeTool) Description() string { return "Validate and save a declarative automation recipe." }
func (t *CreateRecipeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"recipe_json": map[string]interface{}{"type": "object", "description": "Recipe document"},
		},
		"required": []string{"recipe_json"},
	}
}
func (t *CreateRecipeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	raw := getMapArg(args, "recipe_json")
	if raw == nil {
		return nil, fleet.NewError(fleet.InvalidArguments, nil, "missing required argument %q", "recipe_json")
	}
	r, err := decodeRecipe(raw)
	if err != nil {
		return nil, err
	}
	if err := t.store.Create(r); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "name": r.Name}, nil
}

// ListRecipesTool lists every stored recipe's name.
type ListRecipesTool struct{ store *recipe.Store }

func (t *ListRecipesTool) Name() string        { return "list_recipes" }
func (t *ListRecipesTool) Description() string { return "List the names of every saved recipe." }
func (t *ListRecipesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ListRecipesTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	names, err := t.store.List()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "recipes": names}, nil
}

// GetRecipeTool returns a stored recipe's full document.
type GetRecipeTool struct{ store *recipe.Store }

func (t *GetRecipeTool) Name() string        { return "get_recipe" }
func (t *GetRecipeTool) Description() string { return "Retrieve a saved recipe by name." }
func (t *GetRecipeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"name": map[string]interface{}{"type": "string"}},
		"required":   []string{"name"},
	}
}
func (t *GetRecipeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "name"); err != nil {
		return nil, err
	}
	r, err := t.store.Get(getStringArg(args, "name"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "recipe": r}, nil
}

// DeleteRecipeTool removes a saved recipe by name.
type DeleteRecipeTool struct{ store *recipe.Store }

func (t *DeleteRecipeTool) Name() string        { return "delete_recipe" }
func (t *DeleteRecipeTool) Description() string { return "Delete a saved recipe by name." }
func (t *DeleteRecipeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"name": map[string]interface{}{"type": "string"}},
		"required":   []string{"name"},
	}
}
func (t *DeleteRecipeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "name"); err != nil {
		return nil, err
	}
	if err := t.store.Delete(getStringArg(args, "name")); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}

// ExecuteRecipeTool runs a saved recipe across its resolved browser set.
type ExecuteRecipeTool struct {
	store    *recipe.Store
	executor *recipe.Executor
}

func (t *ExecuteRecipeTool) Name() string        { return "execute_recipe" }
func (t *ExecuteRecipeTool) Description() string { return "Execute a saved recipe, substituting the supplied parameters." }
func (t *ExecuteRecipeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":              map[string]interface{}{"type": "string"},
			"parameters":        map[string]interface{}{"type": "object", "description": "Recipe parameter values"},
			"session_id":        map[string]interface{}{"type": "string", "description": "Session id for steps that don't set their own session_id"},
			"continue_on_error": map[string]interface{}{"type": "boolean", "description": "Run-wide default for steps that don't set their own continue_on_error"},
		},
		"required": []string{"name"},
	}
}
func (t *ExecuteRecipeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "name"); err != nil {
		return nil, err
	}
	r, err := t.store.Get(getStringArg(args, "name"))
	if err != nil {
		return nil, err
	}
	params := getMapArg(args, "parameters")
	sessionID := getStringArg(args, "session_id")
	continueOnError := getBoolArg(args, "continue_on_error", false)
	result, err := t.executor.Execute(ctx, r, params, sessionID, continueOnError)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateRecipeTemplateTool materializes one of a small set of named
// starter recipes, saving it under the caller-supplied name.
type CreateRecipeTemplateTool struct{ store *recipe.Store }

func (t *CreateRecipeTemplateTool) Name() string { return "create_recipe_template" }
func (t *CreateRecipeTemplateTool) Description() string {
	return `Create a new recipe from a named starter template: "smoke", "login", or "cross-browser-compare".`
}
func (t *CreateRecipeTemplateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"template": map[string]interface{}{"type": "string", "description": "smoke, login, or cross-browser-compare"},
			"name":     map[string]interface{}{"type": "string", "description": "Name to save the generated recipe under"},
		},
		"required": []string{"template", "name"},
	}
}
func (t *CreateRecipeTemplateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := requireStrings(args, "template", "name"); err != nil {
		return nil, err
	}
	name := getStringArg(args, "name")
	r, err := recipeTemplate(getStringArg(args, "template"), name)
	if err != nil {
		return nil, err
	}
	if err := t.store.Create(r); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "name": r.Name}, nil
}

func recipeTemplate(template, name string) (recipe.Recipe, error) {
	switch template {
	case "smoke":
		return recipe.Recipe{
			Name:     name,
			Version:  "1.0",
			Browsers: []recipe.BrowserSpec{recipe.AutoBrowser},
			Parameters: map[string]recipe.ParameterSpec{
				"url": {Description: "Page to load", Required: true},
			},
			Steps: []recipe.RecipeStep{
				{Action: "navigate", Arguments: map[string]interface{}{"url": "${url}"}},
				{Action: "wait_for_condition", Arguments: map[string]interface{}{"condition": "document.readyState === 'complete'"}, RetryCount: 2},
				{Action: "get_title"},
			},
		}, nil
	case "login":
		return recipe.Recipe{
			Name:     name,
			Version:  "1.0",
			Browsers: []recipe.BrowserSpec{recipe.AutoBrowser},
			Parameters: map[string]recipe.ParameterSpec{
				"url":      {Description: "Login page URL", Required: true},
				"username": {Description: "Account username", Required: true},
				"password": {Description: "Account password", Required: true},
			},
			Steps: []recipe.RecipeStep{
				{Action: "navigate", Arguments: map[string]interface{}{"url": "${url}"}},
				{Action: "login_form", Arguments: map[string]interface{}{"username": "${username}", "password": "${password}"}},
				{Action: "wait_for_condition", Arguments: map[string]interface{}{"condition": "!location.href.includes('login')"}, RetryCount: 3, RetryDelayMS: 500},
			},
		}, nil
	case "cross-browser-compare":
		return recipe.Recipe{
			Name:     name,
			Version:  "1.0",
			Browsers: []recipe.BrowserSpec{recipe.BrowserSpec(config.Chrome), recipe.BrowserSpec(config.Firefox)},
			Parameters: map[string]recipe.ParameterSpec{
				"url": {Description: "Page to compare", Required: true},
			},
			Steps: []recipe.RecipeStep{
				{Action: "navigate", Arguments: map[string]interface{}{"url": "${url}"}},
				{Action: "screenshot", Arguments: map[string]interface{}{"save_path": "{{browser}}_compare.png"}, ContinueOnError: true},
				{Action: "get_page_source"},
			},
		}, nil
	default:
		return recipe.Recipe{}, fleet.NewError(fleet.InvalidRecipe, nil, "unknown recipe template %q", template)
	}
}

func decodeRecipe(raw map[string]interface{}) (recipe.Recipe, error) {
	data, err := marshalForDecode(raw)
	if err != nil {
		return recipe.Recipe{}, err
	}
	return recipe.Parse(data)
}
