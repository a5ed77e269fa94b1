package builds

import "strings"

// DefaultProductionBranches is the branch set treated as production when no
// override is configured.
var DefaultProductionBranches = []string{"main", "master", "production", "prod"}

// BranchClassifier decides whether a branch deploys to production.
//
// AbsentIsProduction controls events that carry no branch at all. Historically
// those were routed down the production notification path; it is a
// configuration default (ABSENT_BRANCH_IS_PRODUCTION) rather than a fixed rule.
type BranchClassifier struct {
	ProductionBranches []string
	AbsentIsProduction bool
}

// NewBranchClassifier builds a classifier. An empty branch list selects
// DefaultProductionBranches.
func NewBranchClassifier(branches []string, absentIsProduction bool) BranchClassifier {
	cleaned := make([]string, 0, len(branches))
	for _, b := range branches {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultProductionBranches...)
	}
	return BranchClassifier{
		ProductionBranches: cleaned,
		AbsentIsProduction: absentIsProduction,
	}
}

// IsProduction reports whether branch is a production branch. A blank branch
// is treated as absent.
func (c BranchClassifier) IsProduction(branch string) bool {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return c.AbsentIsProduction
	}
	for _, p := range c.ProductionBranches {
		if strings.EqualFold(p, branch) {
			return true
		}
	}
	return false
}
