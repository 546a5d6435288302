// Package problem loads max-flow problem definitions from YAML files for
// the gridcut driver: grid shape, connectivity, terminal weights and edge
// capacities, expressed as data instead of code.
package problem

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"gridflow"
	"gridflow/internal/layout"
	"gridflow/pkg/apperror"
	"gridflow/pkg/domain"
)

// Terminal attaches source and sink capacity to a node.
type Terminal struct {
	Node   int64 `koanf:"node"`
	Source int64 `koanf:"source"`
	Sink   int64 `koanf:"sink"`
}

// Edge is one inter-node capacity.
type Edge struct {
	From       int64 `koanf:"from"`
	To         int64 `koanf:"to"`
	Cap        int64 `koanf:"cap"`
	ReverseCap int64 `koanf:"reverse_cap"`
}

// Problem is a complete problem instance.
type Problem struct {
	Dimensions      []int      `koanf:"dimensions"`
	BlockDimensions []int      `koanf:"block_dimensions"`
	Connectivity    int        `koanf:"connectivity"`
	Terminals       []Terminal `koanf:"terminals"`
	Edges           []Edge     `koanf:"edges"`
}

// Load reads a problem definition from a YAML file.
func Load(path string) (*Problem, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read problem file %s: %w", path, err)
	}

	var p Problem
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("failed to parse problem file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the problem for structural consistency. Node ranges and
// template membership are checked later by the graph itself.
func (p *Problem) Validate() error {
	if len(p.Dimensions) == 0 {
		return apperror.New(apperror.CodeInvalidDimension, "problem has no dimensions")
	}
	if len(p.BlockDimensions) != len(p.Dimensions) {
		return apperror.New(apperror.CodeInvalidDimension,
			"block_dimensions must match dimensions in length")
	}
	switch p.Connectivity {
	case 2, 4, 6, 8, 26:
	default:
		return apperror.Newf(apperror.CodeInvalidLayout,
			"connectivity must be one of 2, 4, 6, 8, 26, got %d", p.Connectivity)
	}

	for i, term := range p.Terminals {
		if err := checkCapacity(term.Source); err != nil {
			return apperror.Wrap(err, apperror.Code(err),
				fmt.Sprintf("terminal %d source capacity", i))
		}
		if err := checkCapacity(term.Sink); err != nil {
			return apperror.Wrap(err, apperror.Code(err),
				fmt.Sprintf("terminal %d sink capacity", i))
		}
	}
	for i, e := range p.Edges {
		if err := checkCapacity(e.Cap); err != nil {
			return apperror.Wrap(err, apperror.Code(err),
				fmt.Sprintf("edge %d capacity", i))
		}
		if err := checkCapacity(e.ReverseCap); err != nil {
			return apperror.Wrap(err, apperror.Code(err),
				fmt.Sprintf("edge %d reverse capacity", i))
		}
	}
	return nil
}

func checkCapacity(v int64) error {
	if v < 0 {
		return apperror.Newf(apperror.CodeNegativeCapacity, "capacity %d is negative", v)
	}
	if v > int64(domain.MaxCapacity) {
		return apperror.Newf(apperror.CodeCapacityOverflow, "capacity %d exceeds the capacity type range", v)
	}
	return nil
}

// Build constructs and populates a RegularGraph from the problem.
func (p *Problem) Build(opts *gridflow.Options) (*gridflow.RegularGraph, error) {
	tpl, err := layout.ByConnectivity(p.Connectivity)
	if err != nil {
		return nil, err
	}

	g, err := gridflow.New(tpl, p.Dimensions, p.BlockDimensions, opts)
	if err != nil {
		return nil, err
	}

	for _, term := range p.Terminals {
		if err := g.AddTerminalWeights(term.Node, domain.Capacity(term.Source), domain.Capacity(term.Sink)); err != nil {
			return nil, err
		}
	}
	for _, e := range p.Edges {
		if err := g.AddEdge(e.From, e.To, domain.Capacity(e.Cap), domain.Capacity(e.ReverseCap)); err != nil {
			return nil, err
		}
	}
	return g, nil
}
