package compiler

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/tickflow/internal/canon"
)

// Section names in a tuning table.
const (
	SectionConfig  = "config"
	SectionInitial = "initial"
)

//go:embed schema.cue
var schemaCUE string

//go:embed tuning.schema.json
var schemaJSON string

//go:embed tunings/be13.cue
var be13CUE []byte

// Table is a compiled tuning table.
//
// Config holds per-machine constants read once at construction. Initial
// holds per-machine starting values. Both map machine ID to property to
// value. A nil section means the source did not define it.
type Table struct {
	Source  string
	Config  map[string]map[string]float64
	Initial map[string]map[string]float64
}

// Load compiles the tuning table at path. The format follows the extension:
// .cue files are unified with the #Tuning schema, .json files are checked
// against the JSON Schema.
func Load(path string) (*Table, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning table: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return CompileCUE(path, src)
	case ".json":
		return CompileJSON(path, src)
	default:
		return nil, &CompileError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported tuning format %q (want .cue or .json)", ext),
		}
	}
}

// Default returns the embedded BE13 tuning table.
func Default() (*Table, error) {
	return CompileCUE("be13.cue", be13CUE)
}

// CompileCUE compiles CUE source into a Table.
// Uses the CUE SDK's Go API directly.
func CompileCUE(filename string, src []byte) (*Table, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("tuning schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Tuning")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Table{Source: filename}
	var err error
	if t.Config, err = decodeSection(v, SectionConfig); err != nil {
		return nil, err
	}
	if t.Initial, err = decodeSection(v, SectionInitial); err != nil {
		return nil, err
	}

	slog.Debug("tuning table compiled", "source", filename, "machines", len(t.Config))
	return t, nil
}

// decodeSection reads one section of a unified tuning value. A missing
// section decodes to nil.
func decodeSection(v cue.Value, name string) (map[string]map[string]float64, error) {
	sec := v.LookupPath(cue.ParsePath(name))
	if !sec.Exists() {
		return nil, nil
	}

	machines, err := sec.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]map[string]float64)
	for machines.Next() {
		id := machines.Label()
		props, err := machines.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}

		values := make(map[string]float64)
		for props.Next() {
			pv, _ := props.Value().Default()
			f, err := pv.Float64()
			if err != nil {
				return nil, &CompileError{
					Field:   name + "." + id + "." + props.Label(),
					Message: err.Error(),
					Pos:     pv.Pos(),
				}
			}
			values[props.Label()] = f
		}
		out[id] = values
	}
	return out, nil
}

var compileJSONSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("tuning.schema.json", schemaJSON)
})

// jsonTable is the wire shape of a JSON tuning table.
type jsonTable struct {
	Config  map[string]map[string]float64 `json:"config"`
	Initial map[string]map[string]float64 `json:"initial"`
}

// CompileJSON compiles a JSON tuning table after validating it against the
// embedded JSON Schema.
func CompileJSON(filename string, src []byte) (*Table, error) {
	schema, err := compileJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("tuning schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, &CompileError{Field: "json", Message: err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &CompileError{Field: "json", Message: err.Error()}
	}

	var raw jsonTable
	if err := json.Unmarshal(src, &raw); err != nil {
		return nil, &CompileError{Field: "json", Message: err.Error()}
	}

	slog.Debug("tuning table compiled", "source", filename, "machines", len(raw.Config))
	return &Table{
		Source:  filename,
		Config:  raw.Config,
		Initial: raw.Initial,
	}, nil
}

// ConfigValue returns a constant from the config section.
func (t *Table) ConfigValue(machine, property string) (float64, error) {
	return lookup(t.Config, SectionConfig, machine, property)
}

// InitialValue returns a starting value from the initial section.
func (t *Table) InitialValue(machine, property string) (float64, error) {
	return lookup(t.Initial, SectionInitial, machine, property)
}

func lookup(section map[string]map[string]float64, name, machine, property string) (float64, error) {
	if section == nil {
		return 0, &MissingValueError{Missing: MissingSection, Section: name, Machine: machine, Property: property}
	}
	values, ok := section[machine]
	if !ok {
		return 0, &MissingValueError{Missing: MissingMachine, Section: name, Machine: machine, Property: property}
	}
	v, ok := values[property]
	if !ok {
		return 0, &MissingValueError{Missing: MissingProperty, Section: name, Machine: machine, Property: property}
	}
	return v, nil
}

// Hash returns the content digest of the table. The source name is not
// part of the digest.
func (t *Table) Hash() (string, error) {
	data, err := t.Canonical()
	if err != nil {
		return "", err
	}
	return canon.DigestBytes(canon.DomainTuning, data), nil
}

// Canonical returns the table as canonical JSON. The output is itself a
// valid JSON tuning table, so CompileJSON reproduces t.
func (t *Table) Canonical() ([]byte, error) {
	return canon.MarshalCanonical(map[string]any{
		SectionConfig:  t.Config,
		SectionInitial: t.Initial,
	})
}

// Reader returns a Reader for one machine.
func (t *Table) Reader(machine string) *Reader {
	return &Reader{table: t, machine: machine}
}

// Reader reads one machine's tuning values. The first lookup failure is
// kept and reported by Err; later lookups return zero. Constructors read
// everything they need and check Err once.
type Reader struct {
	table   *Table
	machine string
	err     error
}

// Value returns a config constant.
func (r *Reader) Value(property string) float64 {
	v, err := r.table.ConfigValue(r.machine, property)
	r.keep(err)
	return v
}

// Initial returns an initial value.
func (r *Reader) Initial(property string) float64 {
	v, err := r.table.InitialValue(r.machine, property)
	r.keep(err)
	return v
}

// Err returns the first lookup failure, if any.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) keep(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}
