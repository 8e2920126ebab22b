package workflow

import (
	"sort"
	"strings"

	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// DefaultApproverLevel applies to configured approvers without a level
const DefaultApproverLevel = 2

// HeadApproverLevel is the level assigned to the cost center head
const HeadApproverLevel = 1

// ResolvedApprover is one required approver produced by the resolver
type ResolvedApprover struct {
	UserID string
	Role   string
	Level  int
	// Order is the 1-based position within the stage
	Order int
}

// ResolvedStage groups the approvers sharing a level
type ResolvedStage struct {
	Level int
	// Order is the 1-based rank of Level among distinct levels
	Order     int
	Approvers []ResolvedApprover
}

// Resolution is the resolver output. An empty resolution means no approvers
// could be derived and approval must not start.
type Resolution struct {
	Stages []ResolvedStage
}

// IsEmpty reports the "no approvers configured" signal
func (r Resolution) IsEmpty() bool {
	return len(r.Stages) == 0
}

// Approvers flattens the stages into the ordered approver list
func (r Resolution) Approvers() []ResolvedApprover {
	var out []ResolvedApprover
	for _, stage := range r.Stages {
		out = append(out, stage.Approvers...)
	}
	return out
}

// ResolveApprovers derives the ordered, staged approver set of a cost center.
// The head is a level-1 approver; configured approvers keep their level or
// fall back to DefaultApproverLevel. Each distinct level becomes one stage.
func ResolveApprovers(cc *entity.CostCenter) Resolution {
	if cc == nil {
		return Resolution{}
	}

	var flat []ResolvedApprover
	if head := strings.TrimSpace(cc.HeadUserID); head != "" {
		flat = append(flat, ResolvedApprover{UserID: head, Role: entity.RoleCostCenterHead, Level: HeadApproverLevel})
	}
	for _, ap := range cc.Approvers {
		userID := strings.TrimSpace(ap.UserID)
		if userID == "" {
			continue
		}
		level := ap.Level
		if level <= 0 {
			level = DefaultApproverLevel
		}
		flat = append(flat, ResolvedApprover{UserID: userID, Role: entity.RoleApprover, Level: level})
	}

	// ties keep insertion order
	sort.SliceStable(flat, func(i, j int) bool { return flat[i].Level < flat[j].Level })

	var res Resolution
	for _, ap := range flat {
		n := len(res.Stages)
		if n == 0 || res.Stages[n-1].Level != ap.Level {
			res.Stages = append(res.Stages, ResolvedStage{Level: ap.Level, Order: n + 1})
			n++
		}
		stage := &res.Stages[n-1]
		if containsUser(stage.Approvers, ap.UserID) {
			continue
		}
		ap.Order = len(stage.Approvers) + 1
		stage.Approvers = append(stage.Approvers, ap)
	}
	return res
}

func containsUser(approvers []ResolvedApprover, userID string) bool {
	for _, ap := range approvers {
		if ap.UserID == userID {
			return true
		}
	}
	return false
}
