package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReloadPromptsFromFiles(t *testing.T) {
	dir := t.TempDir()
	gioiaFile := writePromptFile(t, dir, "gioia.md", "\n  Code this transcript:\n%s\n\n")
	systemFile := writePromptFile(t, dir, "system.md", "You are a careful qualitative researcher.")

	cfg := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				Templates: map[string]string{"narrative": "global narrative %s"},
			},
			Analyze: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPromptFile: systemFile,
					TemplateFiles:    map[string]string{"gioia": gioiaFile},
				},
			},
		},
	}

	require.NoError(t, cfg.ReloadPrompts())

	prompts := cfg.Prompts()
	assert.Equal(t, "Code this transcript:\n%s", prompts.Template(OpAnalyze, "gioia"))
	assert.Equal(t, "You are a careful qualitative researcher.", prompts.System(OpAnalyze))
	assert.Equal(t, "", prompts.System(OpSimulate))
	assert.Equal(t, "global narrative %s", prompts.Template(OpCompare, "narrative"), "falls back to global scope")
	assert.Equal(t, "", prompts.Template(OpSimulate, "simulate"))
	assert.ElementsMatch(t, []string{gioiaFile, systemFile}, prompts.Files())
}

func TestReloadPromptsPicksUpFileChanges(t *testing.T) {
	dir := t.TempDir()
	file := writePromptFile(t, dir, "persona.md", "first %s")

	cfg := &Config{AI: AIConfig{Extract: OperationAIConfig{
		CustomPrompts: PromptConfig{TemplateFiles: map[string]string{"persona": file}},
	}}}
	require.NoError(t, cfg.ReloadPrompts())
	before := cfg.Prompts()
	assert.Equal(t, "first %s", before.Template(OpExtract, "persona"))

	writePromptFile(t, dir, "persona.md", "second %s")
	require.NoError(t, cfg.ReloadPrompts())

	assert.Same(t, before, cfg.Prompts(), "reload swaps contents in place")
	assert.Equal(t, "second %s", cfg.Prompts().Template(OpExtract, "persona"))
}

func TestReloadPromptsKeepsPreviousSetOnError(t *testing.T) {
	dir := t.TempDir()
	file := writePromptFile(t, dir, "gioia.md", "ok %s")

	cfg := &Config{AI: AIConfig{Analyze: OperationAIConfig{
		CustomPrompts: PromptConfig{TemplateFiles: map[string]string{"gioia": file}},
	}}}
	require.NoError(t, cfg.ReloadPrompts())

	writePromptFile(t, dir, "gioia.md", "   \n")
	err := cfg.ReloadPrompts()
	assert.ErrorContains(t, err, "is empty")
	assert.Equal(t, "ok %s", cfg.Prompts().Template(OpAnalyze, "gioia"))
}

func TestValidatePromptFiles(t *testing.T) {
	dir := t.TempDir()
	valid := writePromptFile(t, dir, "valid.md", "Valid content")

	t.Run("existing files pass", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{Simulate: OperationAIConfig{
			CustomPrompts: PromptConfig{SystemPromptFile: valid},
		}}}
		assert.NoError(t, cfg.validatePromptFiles())
	})

	t.Run("missing files are reported together", func(t *testing.T) {
		cfg := &Config{AI: AIConfig{
			CustomPrompts: PromptConfig{SystemPromptFile: filepath.Join(dir, "nope.md")},
			Compare: OperationAIConfig{
				CustomPrompts: PromptConfig{TemplateFiles: map[string]string{"narrative": filepath.Join(dir, "gone.md")}},
			},
		}}
		err := cfg.validatePromptFiles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope.md")
		assert.Contains(t, err.Error(), "gone.md")
	})
}

func TestPromptSetConcurrentAccess(t *testing.T) {
	cfg := &Config{AI: AIConfig{CustomPrompts: PromptConfig{Templates: map[string]string{"gioia": "x %s"}}}}
	require.NoError(t, cfg.ReloadPrompts())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cfg.Prompts().Template(OpAnalyze, "gioia")
		}()
		go func() {
			defer wg.Done()
			_ = cfg.ReloadPrompts()
		}()
	}
	wg.Wait()
	assert.Equal(t, "x %s", cfg.Prompts().Template(OpAnalyze, "gioia"))
}

func TestNilPromptSet(t *testing.T) {
	var p *PromptSet
	assert.Equal(t, "", p.System(OpAnalyze))
	assert.Equal(t, "", p.Template(OpAnalyze, "gioia"))
	assert.Nil(t, p.Files())
}
