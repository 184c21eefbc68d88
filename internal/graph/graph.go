// Package graph implements a small portable computation graph format for
// exported classifiers, and a session that executes it.
//
// Graphs are encoded in protobuf wire format, so the bytes are identical on
// every architecture and can be read without the training code.
package graph

import "errors"

// ElemType is the element type of a graph value
type ElemType int32

const (
	TypeDouble ElemType = 1
	TypeInt64  ElemType = 2
)

// Dynamic marks a dimension whose size is only known at run time (the batch)
const Dynamic int64 = -1

// Supported operators
const (
	OpMatMul  = "MatMul"
	OpAdd     = "Add"
	OpGreater = "Greater"
)

// Well known value names of exported classifiers
const (
	InputName  = "float_input"
	LabelName  = "label"
	ScoresName = "scores"
)

var (
	// ErrInvalidGraph is returned when a graph cannot be decoded or validated
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrExecution is returned when running a graph fails
	ErrExecution = errors.New("graph execution failed")
)

// ValueInfo declares a graph input or output
type ValueInfo struct {
	Name string
	Type ElemType
	Dims []int64
}

// Tensor is a constant initializer
type Tensor struct {
	Name string
	Dims []int64
	Data []float64
}

// Node applies one operator to named values
type Node struct {
	Name    string
	OpType  string
	Inputs  []string
	Outputs []string
}

// Graph is a classifier exported for execution without the training code
type Graph struct {
	Name         string
	Producer     string
	Opset        uint64
	Inputs       []ValueInfo
	Outputs      []ValueInfo
	Initializers []Tensor
	Nodes        []Node
}

// ExportLinear builds the graph of a linear binary classifier:
// scores = float_input x coef + intercept, label = scores > 0
func ExportLinear(weights []float64, bias float64, producer string) *Graph {
	features := int64(len(weights))
	return &Graph{
		Name:     "linear_svc",
		Producer: producer,
		Opset:    1,
		Inputs: []ValueInfo{
			{Name: InputName, Type: TypeDouble, Dims: []int64{Dynamic, features}},
		},
		Outputs: []ValueInfo{
			{Name: LabelName, Type: TypeInt64, Dims: []int64{Dynamic}},
			{Name: ScoresName, Type: TypeDouble, Dims: []int64{Dynamic, 1}},
		},
		Initializers: []Tensor{
			{Name: "coef", Dims: []int64{features, 1}, Data: append([]float64(nil), weights...)},
			{Name: "intercept", Dims: []int64{1}, Data: []float64{bias}},
			{Name: "threshold", Dims: []int64{1}, Data: []float64{0}},
		},
		Nodes: []Node{
			{Name: "margin", OpType: OpMatMul, Inputs: []string{InputName, "coef"}, Outputs: []string{"margin"}},
			{Name: "bias", OpType: OpAdd, Inputs: []string{"margin", "intercept"}, Outputs: []string{ScoresName}},
			{Name: "decide", OpType: OpGreater, Inputs: []string{ScoresName, "threshold"}, Outputs: []string{LabelName}},
		},
	}
}
