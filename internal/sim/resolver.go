package sim

import (
	"cmp"
	"math"
	"slices"
)

// Pool holds, per source, the output still available this tick.
type Pool map[string]Values

// Grant records one resolved request.
type Grant struct {
	// Seq is the grant's position within the tick, starting at 0.
	Seq       int      `json:"seq"`
	Requester string   `json:"requester"`
	Source    string   `json:"source"`
	Property  string   `json:"property"`
	Target    string   `json:"target"`
	Priority  int      `json:"priority"`
	Requested *float64 `json:"requested,omitempty"`
	Available float64  `json:"available"`
	Granted   float64  `json:"granted"`
}

// pending is a request tagged with its requester. Its position in the
// gathered slice is the insertion order used to break priority ties.
type pending struct {
	requester string
	req       Request
}

// gather collects requests in registration order.
func (p *Program) gather(prev *State) []pending {
	var reqs []pending
	for _, c := range p.components {
		r, ok := c.(Requester)
		if !ok {
			continue
		}
		for _, req := range r.Input(prev.Machines[c.ID()].Clone()) {
			reqs = append(reqs, pending{requester: c.ID(), req: req})
		}
	}
	return reqs
}

// snapshotPool copies every declared output present in prev.
func (p *Program) snapshotPool(prev *State) Pool {
	pool := make(Pool, len(p.components))
	for _, c := range p.components {
		id := c.ID()
		outs := p.outputs[id]
		if len(outs) == 0 {
			continue
		}
		vals := make(Values, len(outs))
		for _, o := range outs {
			if v, ok := prev.Machines[id][o]; ok {
				vals[o] = v
			}
		}
		pool[id] = vals
	}
	return pool
}

// validateRequest checks a request against the program and the pool.
func (p *Program) validateRequest(tick int64, pool Pool, pr pending) error {
	r := pr.req
	switch {
	case r.Source == "" || r.Property == "":
		return requestError(ErrCodeInvalidRequest, tick, pr.requester, r, "request needs a source and a property")
	case r.Max != nil && math.IsNaN(*r.Max):
		return requestError(ErrCodeInvalidRequest, tick, pr.requester, r, "request cap is NaN")
	}
	if _, ok := p.index[r.Source]; !ok {
		return requestError(ErrCodeUnknownSource, tick, pr.requester, r,
			"source component %q does not exist", r.Source)
	}
	if !p.Declares(r.Source, r.Property) {
		return requestError(ErrCodeUndeclaredOutput, tick, pr.requester, r,
			"property %q is not an output of %q", r.Property, r.Source)
	}
	v, ok := pool[r.Source][r.Property]
	if !ok {
		return requestError(ErrCodeMissingOutput, tick, pr.requester, r,
			"%q produced no value for output %q", r.Source, r.Property)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return requestError(ErrCodeInvalidOutput, tick, pr.requester, r,
			"%q output %q is %v", r.Source, r.Property, v)
	}
	return nil
}

// resolve serves requests source by source in registration order.
//
// CRITICAL: every request is validated before any grant is made, so a
// wiring error never leaves a half-drained pool behind.
//
// Every registered component gets an input map, empty if it asked for
// nothing. Grants to the same target slot accumulate.
func (p *Program) resolve(tick int64, pool Pool, reqs []pending) (map[string]Values, []Grant, error) {
	for _, pr := range reqs {
		if err := p.validateRequest(tick, pool, pr); err != nil {
			return nil, nil, err
		}
	}

	inputs := make(map[string]Values, len(p.components))
	for _, c := range p.components {
		inputs[c.ID()] = Values{}
	}

	bySource := make(map[string][]pending)
	for _, pr := range reqs {
		bySource[pr.req.Source] = append(bySource[pr.req.Source], pr)
	}

	var grants []Grant
	for _, c := range p.components {
		queue := bySource[c.ID()]
		if len(queue) == 0 {
			continue
		}
		// Stable: equal priorities keep insertion order.
		slices.SortStableFunc(queue, func(a, b pending) int {
			return cmp.Compare(b.req.Priority, a.req.Priority)
		})

		for _, pr := range queue {
			r := pr.req
			available := pool[r.Source][r.Property]
			value := available
			if r.Max != nil {
				value = min(value, *r.Max)
			}
			value = max(value, 0)

			pool[r.Source][r.Property] = available - value
			inputs[pr.requester][r.Target()] += value

			grants = append(grants, Grant{
				Seq:       len(grants),
				Requester: pr.requester,
				Source:    r.Source,
				Property:  r.Property,
				Target:    r.Target(),
				Priority:  r.Priority,
				Requested: r.Max,
				Available: available,
				Granted:   value,
			})
		}
	}

	return inputs, grants, nil
}
