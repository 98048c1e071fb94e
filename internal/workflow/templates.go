package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Template registry errors.
var (
	ErrTemplateExists  = errors.New("workflow: template already registered")
	ErrTemplateUnknown = errors.New("workflow: unknown template")
	ErrTemplateUnnamed = errors.New("workflow: template has no name")
	ErrTemplateNoSteps = errors.New("workflow: template has no steps")
)

// Placeholder forms. A quoted placeholder occupies a whole JSON value and is
// replaced by the parameter's JSON encoding, preserving its type; an inline
// placeholder sits inside a larger string and receives the string form.
var (
	quotedPlaceholder = regexp.MustCompile(`"\{\{([a-zA-Z0-9_.-]+)\}\}"`)
	inlinePlaceholder = regexp.MustCompile(`\{\{([a-zA-Z0-9_.-]+)\}\}`)
)

// Registry holds named workflow templates. Templates are instantiated with
// parameters substituted into {{param.path}} placeholders; unmatched
// placeholders are left verbatim so partially parameterized configs remain
// inspectable.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Config
}

// NewRegistry creates an empty template registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Config)}
}

// Register adds a template under its config name.
func (r *Registry) Register(config Config) error {
	if config.Name == "" {
		return ErrTemplateUnnamed
	}
	if len(config.Steps) == 0 {
		return ErrTemplateNoSteps
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[config.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTemplateExists, config.Name)
	}
	r.templates[config.Name] = config
	return nil
}

// RegisterYAML parses a YAML workflow document and registers it, so step
// graphs can ship as data files.
func (r *Registry) RegisterYAML(document []byte) error {
	var config Config
	if err := yaml.Unmarshal(document, &config); err != nil {
		return fmt.Errorf("workflow: parse template yaml: %w", err)
	}
	return r.Register(config)
}

// Get returns a registered template by name.
func (r *Registry) Get(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.templates[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrTemplateUnknown, name)
	}
	return config, nil
}

// Instantiate resolves a template's placeholders against params and returns
// a ready-to-execute config. Substitution works on the serialized form:
// serialize, regex-replace placeholders with JSON-encoded parameter values,
// deserialize. Unmatched placeholders stay verbatim.
func (r *Registry) Instantiate(name string, params map[string]any) (Config, error) {
	template, err := r.Get(name)
	if err != nil {
		return Config{}, err
	}

	data, err := json.Marshal(template)
	if err != nil {
		return Config{}, fmt.Errorf("workflow: serialize template: %w", err)
	}

	substituted := quotedPlaceholder.ReplaceAllStringFunc(string(data), func(match string) string {
		path := strings.TrimSuffix(strings.TrimPrefix(match, `"{{`), `}}"`)
		value, ok := lookupParam(params, path)
		if !ok {
			return match
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return match
		}
		return string(encoded)
	})

	substituted = inlinePlaceholder.ReplaceAllStringFunc(substituted, func(match string) string {
		path := strings.Trim(match, "{}")
		value, ok := lookupParam(params, path)
		if !ok {
			return match
		}
		return jsonStringForm(value)
	})

	var config Config
	if err := json.Unmarshal([]byte(substituted), &config); err != nil {
		return Config{}, fmt.Errorf("workflow: deserialize template: %w", err)
	}
	return config, nil
}

// lookupParam resolves a dotted path through nested maps and slices.
func lookupParam(params map[string]any, path string) (any, bool) {
	var current any = params
	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// jsonStringForm renders a value for use inside a larger JSON string:
// strings are embedded with their JSON escaping but without surrounding
// quotes; other values use their plain JSON encoding.
func jsonStringForm(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	s := string(encoded)
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
