package service

import "github.com/voltmotors/be-warranty-claims/internal/repository"

// AutoApprovePolicy decides at submission time whether a claim qualifies for
// system auto-approval (AUTO_APPROVED processing type). The rule is pluggable;
// deployments configure it rather than the engine hard-coding one.
type AutoApprovePolicy interface {
	Eligible(claim *repository.Claim) bool
}

// AutoApprovePolicyFunc adapts a plain predicate to AutoApprovePolicy.
type AutoApprovePolicyFunc func(claim *repository.Claim) bool

// Eligible calls f.
func (f AutoApprovePolicyFunc) Eligible(claim *repository.Claim) bool { return f(claim) }

// MaxUnitsPolicy auto-approves claims requesting at most maxUnits part units
// in total. maxUnits <= 0 disables auto-approval entirely.
func MaxUnitsPolicy(maxUnits int) AutoApprovePolicy {
	return AutoApprovePolicyFunc(func(claim *repository.Claim) bool {
		if maxUnits <= 0 {
			return false
		}
		total := 0
		for _, line := range claim.Lines {
			total += line.Quantity
		}
		return total > 0 && total <= maxUnits
	})
}
