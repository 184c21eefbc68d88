package graph

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Session executes a validated graph. It is read-only after construction and
// safe for concurrent use: every Run allocates its own intermediate values.
type Session struct {
	input        ValueInfo
	outputs      []ValueInfo
	initializers map[string]*mat.Dense
	nodes        []Node
	features     int
}

// NewSession validates a graph and prepares it for execution.
// The graph must declare exactly one input of shape (batch, features).
func NewSession(g *Graph, features int) (*Session, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil graph", ErrInvalidGraph)
	}
	if features <= 0 {
		return nil, fmt.Errorf("%w: graph must take at least one feature", ErrInvalidGraph)
	}
	if len(g.Inputs) != 1 {
		return nil, fmt.Errorf("%w: graph declares %d inputs, want 1", ErrInvalidGraph, len(g.Inputs))
	}
	input := g.Inputs[0]
	if len(input.Dims) != 2 || input.Dims[1] != int64(features) || input.Dims[0] == 0 || input.Dims[0] < Dynamic {
		return nil, fmt.Errorf("%w: input %q has shape %v, want [batch %d]", ErrInvalidGraph, input.Name, input.Dims, features)
	}
	if input.Type != TypeDouble {
		return nil, fmt.Errorf("%w: input %q has element type %d, want double", ErrInvalidGraph, input.Name, input.Type)
	}

	defined := map[string]bool{input.Name: true}
	initializers := make(map[string]*mat.Dense, len(g.Initializers))
	for _, t := range g.Initializers {
		if defined[t.Name] {
			return nil, fmt.Errorf("%w: value %q defined twice", ErrInvalidGraph, t.Name)
		}
		m, err := tensorToDense(t)
		if err != nil {
			return nil, err
		}
		initializers[t.Name] = m
		defined[t.Name] = true
	}

	for _, n := range g.Nodes {
		switch n.OpType {
		case OpMatMul, OpAdd, OpGreater:
		default:
			return nil, fmt.Errorf("%w: node %q uses unsupported operator %q", ErrInvalidGraph, n.Name, n.OpType)
		}
		if len(n.Inputs) != 2 || len(n.Outputs) != 1 {
			return nil, fmt.Errorf("%w: node %q must have 2 inputs and 1 output", ErrInvalidGraph, n.Name)
		}
		for _, in := range n.Inputs {
			if !defined[in] {
				return nil, fmt.Errorf("%w: node %q reads undefined value %q", ErrInvalidGraph, n.Name, in)
			}
		}
		if defined[n.Outputs[0]] {
			return nil, fmt.Errorf("%w: value %q defined twice", ErrInvalidGraph, n.Outputs[0])
		}
		defined[n.Outputs[0]] = true
	}

	var hasLabel bool
	for _, out := range g.Outputs {
		if !defined[out.Name] {
			return nil, fmt.Errorf("%w: output %q is never produced", ErrInvalidGraph, out.Name)
		}
		if out.Name == LabelName {
			hasLabel = true
		}
	}
	if !hasLabel {
		return nil, fmt.Errorf("%w: graph has no %q output", ErrInvalidGraph, LabelName)
	}

	return &Session{
		input:        input,
		outputs:      append([]ValueInfo(nil), g.Outputs...),
		initializers: initializers,
		nodes:        append([]Node(nil), g.Nodes...),
		features:     features,
	}, nil
}

// InputName returns the name of the graph input
func (s *Session) InputName() string {
	return s.input.Name
}

// Features returns the number of columns the input expects
func (s *Session) Features() int {
	return s.features
}

// Run executes the graph on a (batch, features) input and returns every graph output
func (s *Session) Run(input *mat.Dense) (map[string]*mat.Dense, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrExecution)
	}
	rows, cols := input.Dims()
	if cols != s.features {
		return nil, fmt.Errorf("%w: input has %d columns, graph expects %d", ErrExecution, cols, s.features)
	}
	if s.input.Dims[0] != Dynamic && int64(rows) != s.input.Dims[0] {
		return nil, fmt.Errorf("%w: input has %d rows, graph expects %d", ErrExecution, rows, s.input.Dims[0])
	}

	values := make(map[string]*mat.Dense, len(s.initializers)+len(s.nodes)+1)
	for name, m := range s.initializers {
		values[name] = m
	}
	values[s.input.Name] = input

	for _, n := range s.nodes {
		a, b := values[n.Inputs[0]], values[n.Inputs[1]]
		var (
			out *mat.Dense
			err error
		)
		switch n.OpType {
		case OpMatMul:
			out, err = matMul(a, b)
		case OpAdd:
			out, err = broadcast(a, b, func(x, y float64) float64 { return x + y })
		case OpGreater:
			out, err = broadcast(a, b, func(x, y float64) float64 {
				if x > y {
					return 1
				}
				return 0
			})
		}
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %v", ErrExecution, n.Name, err)
		}
		values[n.Outputs[0]] = out
	}

	result := make(map[string]*mat.Dense, len(s.outputs))
	for _, out := range s.outputs {
		result[out.Name] = values[out.Name]
	}
	return result, nil
}

// Classify runs the graph on a single vector and returns its label and score
func (s *Session) Classify(vec []float64) (int, float64, error) {
	if len(vec) != s.features {
		return 0, 0, fmt.Errorf("%w: vector has %d values, graph expects %d", ErrExecution, len(vec), s.features)
	}
	outputs, err := s.Run(mat.NewDense(1, len(vec), append([]float64(nil), vec...)))
	if err != nil {
		return 0, 0, err
	}

	label := outputs[LabelName]
	if r, c := label.Dims(); r != 1 || c != 1 {
		return 0, 0, fmt.Errorf("%w: label has shape [%d %d], want [1 1]", ErrExecution, r, c)
	}
	var score float64
	if scores, ok := outputs[ScoresName]; ok {
		score = scores.At(0, 0)
	}

	switch l := label.At(0, 0); l {
	case 0, 1:
		return int(l), score, nil
	default:
		return 0, 0, fmt.Errorf("%w: label %v is not 0 or 1", ErrExecution, l)
	}
}

func tensorToDense(t Tensor) (*mat.Dense, error) {
	var rows, cols int
	switch len(t.Dims) {
	case 1:
		rows, cols = 1, int(t.Dims[0])
	case 2:
		rows, cols = int(t.Dims[0]), int(t.Dims[1])
	default:
		return nil, fmt.Errorf("%w: initializer %q has rank %d", ErrInvalidGraph, t.Name, len(t.Dims))
	}
	if rows <= 0 || cols <= 0 || rows*cols != len(t.Data) {
		return nil, fmt.Errorf("%w: initializer %q has shape %v and %d values", ErrInvalidGraph, t.Name, t.Dims, len(t.Data))
	}
	return mat.NewDense(rows, cols, append([]float64(nil), t.Data...)), nil
}

func matMul(a, b *mat.Dense) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("cannot multiply [%d %d] by [%d %d]", ar, ac, br, bc)
	}
	out := mat.NewDense(ar, bc, nil)
	out.Mul(a, b)
	return out, nil
}

// broadcast applies fn element-wise. b may match a, be a single row, or a scalar.
func broadcast(a, b *mat.Dense, fn func(x, y float64) float64) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	switch {
	case br == ar && bc == ac, br == 1 && bc == ac, br == 1 && bc == 1:
	default:
		return nil, fmt.Errorf("cannot broadcast [%d %d] to [%d %d]", br, bc, ar, ac)
	}

	out := mat.NewDense(ar, ac, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			bi, bj := i, j
			if br == 1 {
				bi = 0
			}
			if bc == 1 {
				bj = 0
			}
			out.Set(i, j, fn(a.At(i, j), b.At(bi, bj)))
		}
	}
	return out, nil
}
