package templates

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/contest-client/internal/models"
)

// Placeholder is the body returned for a language without a template
const Placeholder = "// Start coding here..."

// Template is the starter code for one language
type Template struct {
	Language    models.Language `yaml:"language" json:"language"`
	DisplayName string          `yaml:"display_name" json:"displayName"`
	EditorMode  string          `yaml:"editor_mode" json:"editorMode"`
	Body        string          `yaml:"body" json:"body"`
}

// Loader manages the per-language starter code templates
type Loader struct {
	mu        sync.RWMutex
	templates map[models.Language]*Template
}

// NewLoader creates a loader seeded with the built-in templates
func NewLoader() *Loader {
	l := &Loader{
		templates: make(map[models.Language]*Template, len(builtin)),
	}
	for _, tmpl := range builtin {
		t := tmpl
		l.templates[t.Language] = &t
	}
	return l
}

// LoadFromDir loads YAML template overrides from a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading templates from directory", "dir", dir)

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load template", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("templates loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single template from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	lang, ok := models.ParseLanguage(string(tmpl.Language))
	if !ok {
		return fmt.Errorf("unsupported language: %q", tmpl.Language)
	}
	tmpl.Language = lang

	if tmpl.Body == "" {
		return fmt.Errorf("body is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Missing presentation fields fall back to the built-in values
	if prev, ok := l.templates[lang]; ok {
		if tmpl.DisplayName == "" {
			tmpl.DisplayName = prev.DisplayName
		}
		if tmpl.EditorMode == "" {
			tmpl.EditorMode = prev.EditorMode
		}
	}
	l.templates[lang] = &tmpl

	slog.Info("template loaded", "language", lang, "file", path)
	return nil
}

// Get retrieves a template by language
func (l *Loader) Get(lang models.Language) *Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[lang]
}

// Body returns the starter code for a language, or Placeholder if there is none
func (l *Loader) Body(lang models.Language) string {
	if tmpl := l.Get(lang); tmpl != nil {
		return tmpl.Body
	}
	return Placeholder
}

// DisplayName returns the human name of a language
func (l *Loader) DisplayName(lang models.Language) string {
	if tmpl := l.Get(lang); tmpl != nil && tmpl.DisplayName != "" {
		return tmpl.DisplayName
	}
	return string(lang)
}

// EditorMode returns the syntax mode an editor should use for a language
func (l *Loader) EditorMode(lang models.Language) string {
	if tmpl := l.Get(lang); tmpl != nil && tmpl.EditorMode != "" {
		return tmpl.EditorMode
	}
	return "plaintext"
}

// List returns the templates of all supported languages in display order
func (l *Loader) List() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Template, 0, len(models.Languages))
	for _, lang := range models.Languages {
		if tmpl, ok := l.templates[lang]; ok {
			result = append(result, tmpl)
		}
	}
	return result
}
