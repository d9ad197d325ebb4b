// Package reaction models a multi-step solid-state reaction network: a
// species graph whose edges carry a kinetic model index and Arrhenius
// parameters, and the temperature-domain ODE system it induces.
package reaction

import (
	"fmt"

	"github.com/kinfit/kinfit-core/internal/kinetics"
)

// Reaction is one edge of the species graph. Source transforms into Target
// following the kinetic model at Model with Arrhenius parameters LnA and Ea
// (J/mol). Weight scales the reaction's contribution to the observed signal.
type Reaction struct {
	Source int
	Target int
	Model  int
	LnA    float64
	Ea     float64
	Weight float64
}

// Network is an ordered reaction list over a fixed species count.
// Immutable once validated; species 0 is the root.
type Network struct {
	Species   int
	Reactions []Reaction
}

// Validate checks index bounds, weight ranges and that every species is
// reachable from the root species.
func (n *Network) Validate() error {
	if n.Species < 1 {
		return fmt.Errorf("network must have at least one species, got %d", n.Species)
	}
	if len(n.Reactions) == 0 {
		return fmt.Errorf("network must have at least one reaction")
	}

	adjacent := make([][]int, n.Species)
	for i, r := range n.Reactions {
		if r.Source < 0 || r.Source >= n.Species {
			return fmt.Errorf("reaction %d: source species %d out of range [0,%d)", i, r.Source, n.Species)
		}
		if r.Target < 0 || r.Target >= n.Species {
			return fmt.Errorf("reaction %d: target species %d out of range [0,%d)", i, r.Target, n.Species)
		}
		if r.Source == r.Target {
			return fmt.Errorf("reaction %d: source and target are both species %d", i, r.Source)
		}
		if r.Model < 0 || r.Model >= kinetics.ModelCount {
			return fmt.Errorf("reaction %d: model index %d out of range [0,%d)", i, r.Model, kinetics.ModelCount)
		}
		if r.Weight < 0 || r.Weight > 1 {
			return fmt.Errorf("reaction %d: weight %f out of range [0,1]", i, r.Weight)
		}
		adjacent[r.Source] = append(adjacent[r.Source], r.Target)
	}

	// Every species must be reachable from the root.
	visited := make([]bool, n.Species)
	queue := []int{0}
	visited[0] = true
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, t := range adjacent[s] {
			if !visited[t] {
				visited[t] = true
				queue = append(queue, t)
			}
		}
	}
	for s, ok := range visited {
		if !ok {
			return fmt.Errorf("species %d is not reachable from the root species", s)
		}
	}

	return nil
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	cloned := &Network{
		Species:   n.Species,
		Reactions: make([]Reaction, len(n.Reactions)),
	}
	copy(cloned.Reactions, n.Reactions)
	return cloned
}

// InitialState returns the y0 vector for integration: all mass in the root
// species.
func (n *Network) InitialState() []float64 {
	y0 := make([]float64, n.Species)
	y0[0] = 1
	return y0
}
