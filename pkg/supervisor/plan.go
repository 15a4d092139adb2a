package supervisor

import "fmt"

// PlanStep pairs a service with the set of services that must be started
// before it.
type PlanStep struct {
	Service  string
	Requires []string
}

// StartPlan is the explicit, ordered startup sequence the orchestrator
// drives. Making the order a value rather than an implied call sequence
// lets it be validated before the first Start.
type StartPlan []PlanStep

// Validate checks the plan against the manager's registered services:
// every step's service must be registered and every prerequisite must
// appear as an earlier step.
func (m *Manager) Validate(plan StartPlan) error {
	started := make(map[string]bool, len(plan))
	for i, step := range plan {
		if _, ok := m.services[step.Service]; !ok {
			return fmt.Errorf("plan step %d: service %s is not registered", i, step.Service)
		}
		for _, req := range step.Requires {
			if !started[req] {
				return fmt.Errorf("plan step %d: %s requires %s, which is not an earlier step", i, step.Service, req)
			}
		}
		started[step.Service] = true
	}
	return nil
}
