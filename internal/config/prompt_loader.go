package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// PromptSet holds prompt overrides resolved from config values and files.
// Lookups fall back from the operation block to the global block; an empty
// result means the built-in default applies. Safe for concurrent use so the
// serve-mode watcher can swap contents while requests read them.
type PromptSet struct {
	mu        sync.RWMutex
	system    map[string]string            // operation -> system prompt
	templates map[string]map[string]string // operation -> prompt name -> template
	files     []string
}

const globalScope = ""

// NewPromptSet returns an empty set.
func NewPromptSet() *PromptSet {
	return &PromptSet{
		system:    map[string]string{},
		templates: map[string]map[string]string{},
	}
}

// System returns the system prompt override for operation.
func (p *PromptSet) System(operation string) string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	if v := p.system[operation]; v != "" {
		return v
	}
	return p.system[globalScope]
}

// Template returns the override for the named prompt of operation.
func (p *PromptSet) Template(operation, name string) string {
	if p == nil {
		return ""
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	name = strings.ToLower(name)
	if v := p.templates[operation][name]; v != "" {
		return v
	}
	return p.templates[globalScope][name]
}

// Files returns every prompt file path the set was loaded from.
func (p *PromptSet) Files() []string {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.files...)
}

func (p *PromptSet) replace(other *PromptSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.system = other.system
	p.templates = other.templates
	p.files = other.files
}

// Prompts returns the prompt overrides attached to this configuration.
func (c *Config) Prompts() *PromptSet {
	if c.prompts == nil {
		c.prompts = NewPromptSet()
	}
	return c.prompts
}

// ReloadPrompts re-reads inline and file-based prompt overrides. The current
// set keeps its contents if any file fails to load.
func (c *Config) ReloadPrompts() error {
	log.Println("[CONFIG] Starting custom prompt loading")

	next := NewPromptSet()
	scopes := map[string]PromptConfig{globalScope: c.AI.CustomPrompts}
	for _, op := range []string{OpSimulate, OpAnalyze, OpExtract, OpCompare} {
		scopes[op] = c.operationPrompts(op)
	}

	for scope, prompts := range scopes {
		if err := next.load(scope, prompts); err != nil {
			return err
		}
	}
	sort.Strings(next.files)

	c.Prompts().replace(next)
	logPromptLoadingSummary(next)
	return nil
}

func (p *PromptSet) load(scope string, prompts PromptConfig) error {
	label := scope
	if label == globalScope {
		label = "global"
	}

	if prompts.SystemPrompt != "" {
		p.system[scope] = strings.TrimSpace(prompts.SystemPrompt)
	}
	if prompts.SystemPromptFile != "" {
		content, err := loadPromptFromFile(prompts.SystemPromptFile, label, "system")
		if err != nil {
			return err
		}
		p.system[scope] = content
		p.files = append(p.files, prompts.SystemPromptFile)
	}

	templates := map[string]string{}
	for name, tmpl := range prompts.Templates {
		if tmpl = strings.TrimSpace(tmpl); tmpl != "" {
			templates[strings.ToLower(name)] = tmpl
		}
	}
	for name, file := range prompts.TemplateFiles {
		if file == "" {
			continue
		}
		content, err := loadPromptFromFile(file, label, name)
		if err != nil {
			return err
		}
		templates[strings.ToLower(name)] = content
		p.files = append(p.files, file)
	}
	if len(templates) > 0 {
		p.templates[scope] = templates
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, operation, name string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", operation, name, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", operation, name, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", operation, name, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", operation, name, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		operation, name, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, operation, name string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", operation, name, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", operation, name, absPath))
		}
	}

	check := func(operation string, prompts PromptConfig) {
		validateFile(prompts.SystemPromptFile, operation, "system")
		for name, file := range prompts.TemplateFiles {
			validateFile(file, operation, name)
		}
	}

	check("global", c.AI.CustomPrompts)
	for _, op := range []string{OpSimulate, OpAnalyze, OpExtract, OpCompare} {
		check(op, c.operationPrompts(op))
	}

	if len(validationErrors) > 0 {
		sort.Strings(validationErrors)
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

func logPromptLoadingSummary(p *PromptSet) {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	count := len(p.system)
	for _, templates := range p.templates {
		count += len(templates)
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d (%d from files)", count, len(p.files))
	}

	log.Println("[CONFIG] ==========================================")
}
