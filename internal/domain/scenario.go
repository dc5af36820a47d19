package domain

// Scenario is a named preset that force-sets several risk node states
type Scenario struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Settings    map[string]string `json:"settings" yaml:"settings"`
}

// Built-in scenario names
const (
	ScenarioFinancialCrisis = "2008-style Financial Crisis"
	ScenarioStagflation     = "Stagflation Shock"
	ScenarioSupplyShock     = "Geopolitical Supply Shock"
)

// DefaultScenarios returns the built-in stress scenarios
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:        ScenarioFinancialCrisis,
			Description: "Simulates a severe global recession with frozen credit markets.",
			Settings: map[string]string{
				RiskGDPGrowth:        "Recession",
				RiskInterestRate:     "Cut",
				RiskConsumerSpending: "Weak",
			},
		},
		{
			Name:        ScenarioStagflation,
			Description: "High inflation combined with stagnant economic growth.",
			Settings: map[string]string{
				RiskInflation:    "High",
				RiskGDPGrowth:    "Recession",
				RiskInterestRate: "Hike",
			},
		},
		{
			Name:        ScenarioSupplyShock,
			Description: "A major geopolitical event disrupts supply chains and spikes commodity prices.",
			Settings: map[string]string{
				RiskGeopolitical: "Conflict",
				RiskSupplyChain:  "Severe",
				RiskOilPrice:     "High",
			},
		},
	}
}

// FindScenario looks up a scenario by name
func FindScenario(scenarios []Scenario, name string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// ApplyScenario returns a copy of nodes where every node named in the
// scenario settings takes the mapped state. Order and all other fields are
// preserved. Target states are not checked against the node's states;
// empty mapped values are ignored.
func ApplyScenario(nodes []Node, scenario Scenario) []Node {
	out := CloneNodes(nodes)
	for i := range out {
		if state := scenario.Settings[out[i].ID]; state != "" {
			out[i].CurrentState = state
		}
	}
	return out
}

// SetNodeState returns a copy of nodes with one node's state replaced.
// The second return value is false when no node has the given id.
func SetNodeState(nodes []Node, id, state string) ([]Node, bool) {
	i := FindNode(nodes, id)
	if i < 0 {
		return nodes, false
	}
	out := CloneNodes(nodes)
	out[i].CurrentState = state
	return out, true
}

// Clone returns a deep copy of the scenario
func (s Scenario) Clone() Scenario {
	out := s
	out.Settings = make(map[string]string, len(s.Settings))
	for k, v := range s.Settings {
		out.Settings[k] = v
	}
	return out
}
