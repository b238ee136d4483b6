package sim

import (
	"math"
	"slices"

	"github.com/roach88/tickflow/internal/canon"
)

// Program is an ordered, immutable registry of components.
//
// INVARIANTS:
//   - component order NEVER changes after construction
//   - component IDs are unique and non-empty
//   - each component's declared outputs are unique
type Program struct {
	name       string
	components []Component
	index      map[string]int
	outputs    map[string][]string
	controls   map[string]map[string]Range
}

// NewProgram validates and registers components in the given order.
//
// The slice is copied so later changes by the caller cannot reorder the
// program.
func NewProgram(name string, components ...Component) (*Program, error) {
	p := &Program{
		name:       name,
		components: slices.Clone(components),
		index:      make(map[string]int, len(components)),
		outputs:    make(map[string][]string, len(components)),
		controls:   make(map[string]map[string]Range),
	}

	for i, c := range p.components {
		if c == nil {
			return nil, programError("component %d is nil", i)
		}
		id := c.ID()
		if id == "" {
			return nil, programError("component %d has an empty ID", i)
		}
		if _, dup := p.index[id]; dup {
			return nil, programError("duplicate component ID %q", id)
		}
		p.index[id] = i

		outs := slices.Clone(c.Outputs())
		seen := make(map[string]bool, len(outs))
		for _, o := range outs {
			if o == "" {
				return nil, programError("component %q declares an empty output name", id)
			}
			if seen[o] {
				return nil, programError("component %q declares output %q twice", id, o)
			}
			seen[o] = true
		}
		p.outputs[id] = outs

		if ctl, ok := c.(Controllable); ok {
			ranges := ctl.Controls()
			for prop, r := range ranges {
				if prop == "" || math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
					return nil, programError("component %q has an invalid control %q [%v, %v]", id, prop, r.Min, r.Max)
				}
			}
			if len(ranges) > 0 {
				p.controls[id] = ranges
			}
		}
	}

	return p, nil
}

// Name returns the program name.
func (p *Program) Name() string {
	return p.name
}

// Len returns the number of components.
func (p *Program) Len() int {
	return len(p.components)
}

// IDs returns component IDs in registration order.
func (p *Program) IDs() []string {
	ids := make([]string, len(p.components))
	for i, c := range p.components {
		ids[i] = c.ID()
	}
	return ids
}

// Component looks up a component by ID.
func (p *Program) Component(id string) (Component, bool) {
	i, ok := p.index[id]
	if !ok {
		return nil, false
	}
	return p.components[i], true
}

// Outputs returns the declared outputs of id.
func (p *Program) Outputs(id string) []string {
	return slices.Clone(p.outputs[id])
}

// Declares reports whether component id declares property as an output.
func (p *Program) Declares(id, property string) bool {
	return slices.Contains(p.outputs[id], property)
}

// Controls returns the operator controls of id, if any.
func (p *Program) Controls(id string) map[string]Range {
	return p.controls[id]
}

// Describe returns the program's shape (IDs, outputs, controls) as a value
// suitable for canonical marshaling.
func (p *Program) Describe() map[string]any {
	machines := make([]any, 0, len(p.components))
	for _, c := range p.components {
		id := c.ID()
		m := map[string]any{
			"id":      id,
			"outputs": slices.Clone(p.outputs[id]),
		}
		if ranges := p.controls[id]; len(ranges) > 0 {
			ctl := make(map[string]any, len(ranges))
			for prop, r := range ranges {
				ctl[prop] = []float64{r.Min, r.Max}
			}
			m["controls"] = ctl
		}
		machines = append(machines, m)
	}
	return map[string]any{
		"name":     p.name,
		"machines": machines,
	}
}

// Hash returns a digest of the program's shape. Two programs with the same
// components, outputs and controls in the same order hash equally.
func (p *Program) Hash() (string, error) {
	return canon.Digest(canon.DomainProgram, p.Describe())
}

// SetControl returns a copy of s with machine's control property set to
// value. The state's tick is unchanged.
func (p *Program) SetControl(s *State, machine, property string, value float64) (*State, error) {
	if _, ok := p.index[machine]; !ok {
		return nil, controlError(ErrCodeUnknownControl, machine, property, "no component %q", machine)
	}
	r, ok := p.controls[machine][property]
	if !ok {
		return nil, controlError(ErrCodeUnknownControl, machine, property, "component %q has no control %q", machine, property)
	}
	if !r.Contains(value) {
		return nil, controlError(ErrCodeControlOutOfRange, machine, property, "value %v outside [%v, %v]", value, r.Min, r.Max)
	}
	return s.WithValue(machine, property, value), nil
}

// checkState verifies s holds exactly one entry per registered component.
func (p *Program) checkState(s *State) error {
	if s == nil {
		return stateError("state is nil")
	}
	for _, c := range p.components {
		if _, ok := s.Machines[c.ID()]; !ok {
			return stateError("state has no entry for component %q", c.ID())
		}
	}
	if len(s.Machines) != len(p.components) {
		for id := range s.Machines {
			if _, ok := p.index[id]; !ok {
				return stateError("state has an entry for unregistered component %q", id)
			}
		}
	}
	return nil
}
