package ai

import (
	"fmt"

	"personasim/internal/config"
)

// Prompt template names. Overrides are configured under
// ai.customPrompts.templates or ai.<operation>.customPrompts.templates.
const (
	PromptSimulate  = "simulate"
	PromptGioia     = "gioia"
	PromptPersona   = "persona"
	PromptQuestions = "questions"
	PromptImprove   = "improve"
	PromptNarrative = "narrative"
)

// PersonaPreamble is formatted with name, age, job and personality.
const PersonaPreamble = "You are %s, a %d year old %s with traits: %s. Based on this persona, answer the following questions authentically."

// GioiaStructuredSuffix is appended to the gioia prompt when a JSON schema is requested.
const GioiaStructuredSuffix = "\n\nReturn the analysis as JSON: a list of dimensions, each with its themes, each theme with its codes, and each code with a label and a representative quote."

// DefaultTemplates maps prompt names to their built-in templates.
// Every template takes exactly the %s arguments documented on its name.
var DefaultTemplates = map[string]string{
	// preamble, question
	PromptSimulate: "%s\n\nQuestion: %s\nAnswer:",

	// transcript
	PromptGioia: `You're a qualitative research assistant using the Gioia methodology.
Analyze the following interview data and identify:
1. 3 aggregate dimensions
2. 3 themes under each dimension
3. 3-5 first-order codes under each theme
4. Include a representative quote for each code

Interview Data:
%s`,

	// document text
	PromptPersona: `Please analyze the following text and extract persona information for creating an interview character.
Extract the following information if available:

1. Name (if not available, leave empty)
2. Age (estimate if not explicitly stated)
3. Job/Profession
4. Education level
5. Personality traits
6. Opinion on AI/Technology
7. Opinion on Remote Work

Format your response as JSON with these exact keys:
{
    "name": "extracted name or empty string",
    "age": estimated_age_number,
    "job": "job/profession",
    "education": "education level",
    "personality": "personality traits description",
    "ai_opinion": "opinion on AI/technology",
    "remote_work_opinion": "opinion on remote work"
}

If information is not available, make reasonable assumptions based on context.

Text to analyze:
%s`,

	// document text
	PromptQuestions: `Please analyze the following text and extract all interview questions.
Look for:
1. Direct questions (ending with ?)
2. Prompts that ask for responses (e.g., "Tell me about...", "Describe...", "Explain...")
3. Interview-style statements that expect responses

Format each question on a new line, numbered sequentially.
Only return the questions, nothing else.

Text to analyze:
%s`,

	// numbered question list
	PromptImprove: `Please review and improve these interview questions. For each question:
1. Ensure it's clear and well-formed
2. Make it more engaging if needed
3. Fix any grammatical issues
4. Ensure it's suitable for a research interview

Return only the improved questions, one per line, numbered.

Questions to review:
%s`,

	// rendered comparison
	PromptNarrative: `You are a qualitative research assistant reviewing a simulated interview against the real one.
Below is a question-by-question comparison. Write a short narrative of two or three paragraphs:
where the simulated persona matched the real interviewee, where it diverged, and which emotional nuances it missed.
Do not restate the answers verbatim.

Comparison:
%s`,
}

// DefaultSystemPrompts are sent as system instructions when useSystemPrompts is on
// and no override is configured.
var DefaultSystemPrompts = map[string]string{
	config.OpSimulate: "You are role-playing an interviewee. Stay in character and answer in the first person.",
	config.OpAnalyze:  "You are an experienced qualitative researcher trained in the Gioia methodology.",
	config.OpExtract:  "You are an expert at extracting persona information and interview questions from documents. Follow the requested output format exactly.",
	config.OpCompare:  "You are an experienced qualitative researcher comparing interview transcripts.",
}

// Template returns the configured override for name, or its default.
func Template(prompts *config.PromptSet, operation, name string) string {
	return resolvePrompt(prompts.Template(operation, name), DefaultTemplates[name])
}

// Render formats the named template for operation with args.
func Render(prompts *config.PromptSet, operation, name string, args ...any) string {
	return fmt.Sprintf(Template(prompts, operation, name), args...)
}

// SystemPrompt returns the system instruction for operation.
func SystemPrompt(prompts *config.PromptSet, operation string) string {
	return resolvePrompt(prompts.System(operation), DefaultSystemPrompts[operation])
}

// resolvePrompt prefers a configured or file-loaded override over the built-in default.
func resolvePrompt(override, fromDefault string) string {
	if override != "" {
		return override
	}
	return fromDefault
}
