package model

// Plan is a client's subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// FreeMaxLinks is the number of links a free client may hold.
const FreeMaxLinks = 6

// ParsePlan returns the plan for s and whether it is known.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanFree, PlanPro:
		return Plan(s), true
	}
	return "", false
}

// MaxLinks returns the link cap for the plan, or 0 for unlimited.
func (p Plan) MaxLinks() int {
	if p == PlanFree {
		return FreeMaxLinks
	}
	return 0
}
