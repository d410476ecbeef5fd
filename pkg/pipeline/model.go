package pipeline

import (
	"fmt"

	"github.com/siqueiraa/labelflow/pkg/operator"
)

// Pipeline is a named, ordered operator list.
//
//	name: dual_arm
//	strict_order: true
//	operators:
//	  - type: position
//	    name: pos_left
//	    state_key: observation.state
//	    range: [0, 3]
type Pipeline struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	StrictOrder bool              `yaml:"strict_order,omitempty"`
	Operators   []operator.Config `yaml:"operators"`
}

// Names returns the operator output names in execution order.
func (p Pipeline) Names() []string {
	out := make([]string, len(p.Operators))
	for i, c := range p.Operators {
		out[i] = c.Name
	}
	return out
}

// Build constructs the operators. With StrictOrder set, an operator that
// reads the output of one declared after it is rejected here rather than
// at run time.
func (p Pipeline) Build() ([]operator.Operator, error) {
	ops, err := operator.NewAll(p.Operators)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", p.Name, err)
	}
	if p.StrictOrder {
		if err := ValidateOrder(ops); err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
	}
	return ops, nil
}

// ValidateOrder checks that every input naming another operator of the list
// refers to one declared earlier. Inputs naming no operator are assumed to
// come from prior annotations.
func ValidateOrder(ops []operator.Operator) error {
	position := make(map[string]int, len(ops))
	for i, op := range ops {
		if _, dup := position[op.Name()]; dup {
			return fmt.Errorf("operator name %q is used more than once", op.Name())
		}
		position[op.Name()] = i
	}
	for i, op := range ops {
		for _, in := range op.Inputs() {
			if j, ok := position[in]; ok && j >= i {
				return &operator.MissingDependencyError{Operator: op.Name(), Dependency: in}
			}
		}
	}
	return nil
}
