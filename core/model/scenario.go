package model

import "fmt"

// RouteScenario enumerates the pickup/drop-off orderings of a pooled pair.
// ScenarioSolo is used by single-rider chains.
type RouteScenario int

const (
	ScenarioSolo RouteScenario = iota
	// ScenarioIJIJ picks up i then j, drops i then j.
	ScenarioIJIJ
	// ScenarioIJJI picks up i then j, drops j then i.
	ScenarioIJJI
	// ScenarioJIIJ picks up j then i, drops i then j.
	ScenarioJIIJ
	// ScenarioJIJI picks up j then i, drops j then i.
	ScenarioJIJI
)

// PooledScenarios lists the pooled orderings in evaluation order. Ties on
// total time are resolved by this order.
var PooledScenarios = [4]RouteScenario{ScenarioIJIJ, ScenarioIJJI, ScenarioJIIJ, ScenarioJIJI}

// StopKind tells whether a stop picks up or drops off its rider.
type StopKind int

const (
	Pickup StopKind = iota
	Dropoff
)

func (k StopKind) String() string {
	if k == Pickup {
		return "pickup"
	}
	return "dropoff"
}

// ScenarioNode is one position of a scenario's fixed node ordering. Rider 0
// is trip i, rider 1 is trip j.
type ScenarioNode struct {
	Rider int
	Kind  StopKind
}

var scenarioNodes = map[RouteScenario][]ScenarioNode{
	ScenarioSolo: {{0, Pickup}, {0, Dropoff}},
	ScenarioIJIJ: {{0, Pickup}, {1, Pickup}, {0, Dropoff}, {1, Dropoff}},
	ScenarioIJJI: {{0, Pickup}, {1, Pickup}, {1, Dropoff}, {0, Dropoff}},
	ScenarioJIIJ: {{1, Pickup}, {0, Pickup}, {0, Dropoff}, {1, Dropoff}},
	ScenarioJIJI: {{1, Pickup}, {0, Pickup}, {1, Dropoff}, {0, Dropoff}},
}

// Nodes returns the node ordering of the scenario.
func (s RouteScenario) Nodes() []ScenarioNode {
	return scenarioNodes[s]
}

// Valid reports whether s is a known scenario.
func (s RouteScenario) Valid() bool {
	_, ok := scenarioNodes[s]
	return ok
}

func (s RouteScenario) String() string {
	switch s {
	case ScenarioSolo:
		return "solo"
	case ScenarioIJIJ:
		return "i-j-i-j"
	case ScenarioIJJI:
		return "i-j-j-i"
	case ScenarioJIIJ:
		return "j-i-i-j"
	case ScenarioJIJI:
		return "j-i-j-i"
	default:
		return fmt.Sprintf("RouteScenario(%d)", int(s))
	}
}
