package fsm

import (
	"regexp"
	"strings"

	"ironmanus/internal/domain"
)

var (
	roleFieldRe    = regexp.MustCompile(`(?i)\(ROLE:\s*([^)]+)\)`)
	contextFieldRe = regexp.MustCompile(`(?i)\(CONTEXT:\s*([^)]+)\)`)
	promptFieldRe  = regexp.MustCompile(`(?i)\(PROMPT:\s*([^)]+)\)`)
	outputFieldRe  = regexp.MustCompile(`(?i)\(OUTPUT:\s*([^)]+)\)`)
)

// ExtractMetaPrompt parses the four labeled parenthesized fields
// (ROLE, CONTEXT, PROMPT, OUTPUT) from a todo's content. It returns nil
// when ROLE or PROMPT is missing; CONTEXT and OUTPUT default when absent.
func ExtractMetaPrompt(content string) *domain.MetaPrompt {
	roleMatch := roleFieldRe.FindStringSubmatch(content)
	promptMatch := promptFieldRe.FindStringSubmatch(content)
	if roleMatch == nil || promptMatch == nil {
		return nil
	}

	role := domain.Role(strings.ToLower(strings.TrimSpace(roleMatch[1])))
	instruction := strings.TrimSpace(promptMatch[1])

	contextText := "general"
	if m := contextFieldRe.FindStringSubmatch(content); m != nil {
		contextText = strings.TrimSpace(m[1])
	}

	output := "a completed result"
	if m := outputFieldRe.FindStringSubmatch(content); m != nil {
		output = strings.TrimSpace(m[1])
	}

	return &domain.MetaPrompt{
		RoleSpecification:  role,
		ContextParameters:   map[string]interface{}{"domain": contextText},
		InstructionBlock:    instruction,
		OutputRequirements:  output,
	}
}
