package query

// Predicate is a filter condition.
//
// This is a sealed interface - only types in this package implement it,
// so Compile can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose column equals Value.
// Value must be a string, int, int64 or float64.
type Equals struct {
	Column string
	Value  any
}

func (Equals) predicateNode() {}

// Between matches rows whose integer column lies in [Lo, Hi].
type Between struct {
	Column string
	Lo     int64
	Hi     int64
}

func (Between) predicateNode() {}

// And matches rows that satisfy every predicate. An empty And matches
// every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Select reads columns from one ledger table.
//
//	Select{
//	  From:    "grants",
//	  Columns: []string{"tick", "requester", "granted"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Column: "run_id", Value: runID},
//	    Equals{Column: "source", Value: "reactor"},
//	  }},
//	}
//
// compiles to
//
//	SELECT tick, requester, granted FROM grants
//	WHERE run_id = ? AND source = ? ORDER BY tick ASC, seq ASC
//
// Columns must be explicit; there is no SELECT *.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
}

// AllOf is shorthand for And over the non-nil predicates in ps.
func AllOf(ps ...Predicate) Predicate {
	var out []Predicate
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return And{Predicates: out}
}
