package fsm

import (
	"strings"

	"ironmanus/internal/domain"
)

// roleKeywords is the deterministic keyword table used to detect a
// session's role from its initial objective. Each role's score is the
// count of its keywords appearing in the lowercased objective; the
// highest-scoring role wins, ties broken by declaration order below,
// falling back to RoleSynthesizer when nothing matches.
var roleKeywords = []struct {
	role     domain.Role
	keywords []string
}{
	{domain.RoleCoder, []string{"code", "implement", "build", "program", "function", "api", "bug", "refactor", "compile"}},
	{domain.RoleCritic, []string{"review", "audit", "test", "verify", "critique", "validate", "security"}},
	{domain.RoleResearcher, []string{"research", "summarize", "facts", "study", "investigate", "explain", "learn"}},
	{domain.RoleAnalyzer, []string{"analyze", "data", "metrics", "statistics", "trend", "report"}},
	{domain.RoleUIArchitect, []string{"architecture", "layout", "wireframe", "structure"}},
	{domain.RoleUIImplementer, []string{"ui", "interface", "component", "frontend", "screen"}},
	{domain.RoleUIRefiner, []string{"polish", "refine", "styling", "visual", "design", "color"}},
	{domain.RolePlanner, []string{"plan", "schedule", "organize", "roadmap", "timeline"}},
	{domain.RoleSynthesizer, []string{"synthesize", "combine", "integrate", "merge", "connect"}},
}

// DetectRole implements the role-detection heuristic over the initial
// objective, run once per session at INIT.
func DetectRole(objective string) domain.Role {
	lower := strings.ToLower(objective)

	best := domain.RoleSynthesizer
	bestScore := 0
	for _, entry := range roleKeywords {
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = entry.role
		}
	}
	return best
}
