package graph

import (
	"fmt"

	"github.com/mikey/social-ads-predictor/internal/wire"
	"google.golang.org/protobuf/encoding/protowire"
)

var codec = wire.Decoder{Err: ErrInvalidGraph}

// Field numbers of the wire format. Never renumber.
const (
	graphName        protowire.Number = 1
	graphProducer    protowire.Number = 2
	graphOpset       protowire.Number = 3
	graphInput       protowire.Number = 4
	graphOutput      protowire.Number = 5
	graphInitializer protowire.Number = 6
	graphNode        protowire.Number = 7

	valueName protowire.Number = 1
	valueType protowire.Number = 2
	valueDims protowire.Number = 3

	tensorName protowire.Number = 1
	tensorDims protowire.Number = 2
	tensorData protowire.Number = 3

	nodeName    protowire.Number = 1
	nodeOpType  protowire.Number = 2
	nodeInputs  protowire.Number = 3
	nodeOutputs protowire.Number = 4
)

// Marshal encodes a graph
func Marshal(g *Graph) []byte {
	var b []byte
	b = wire.AppendString(b, graphName, g.Name)
	b = wire.AppendString(b, graphProducer, g.Producer)
	b = protowire.AppendTag(b, graphOpset, protowire.VarintType)
	b = protowire.AppendVarint(b, g.Opset)
	for _, v := range g.Inputs {
		b = wire.AppendMessage(b, graphInput, marshalValueInfo(v))
	}
	for _, v := range g.Outputs {
		b = wire.AppendMessage(b, graphOutput, marshalValueInfo(v))
	}
	for _, t := range g.Initializers {
		b = wire.AppendMessage(b, graphInitializer, marshalTensor(t))
	}
	for _, n := range g.Nodes {
		b = wire.AppendMessage(b, graphNode, marshalNode(n))
	}
	return b
}

// Unmarshal decodes a graph. Unknown fields are skipped.
func Unmarshal(b []byte) (*Graph, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty graph", ErrInvalidGraph)
	}
	g := &Graph{}
	err := codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == graphName && typ == protowire.BytesType:
			return codec.String(b, &g.Name)
		case num == graphProducer && typ == protowire.BytesType:
			return codec.String(b, &g.Producer)
		case num == graphOpset && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			g.Opset = v
			return n, nil
		case num == graphInput && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error {
				v, err := unmarshalValueInfo(m)
				g.Inputs = append(g.Inputs, v)
				return err
			})
		case num == graphOutput && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error {
				v, err := unmarshalValueInfo(m)
				g.Outputs = append(g.Outputs, v)
				return err
			})
		case num == graphInitializer && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error {
				t, err := unmarshalTensor(m)
				g.Initializers = append(g.Initializers, t)
				return err
			})
		case num == graphNode && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error {
				n, err := unmarshalNode(m)
				g.Nodes = append(g.Nodes, n)
				return err
			})
		}
		return wire.Skip, nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func marshalValueInfo(v ValueInfo) []byte {
	var b []byte
	b = wire.AppendString(b, valueName, v.Name)
	b = protowire.AppendTag(b, valueType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type))
	b = appendDims(b, valueDims, v.Dims)
	return b
}

func unmarshalValueInfo(b []byte) (ValueInfo, error) {
	var v ValueInfo
	err := codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == valueName && typ == protowire.BytesType:
			return codec.String(b, &v.Name)
		case num == valueType && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v.Type = ElemType(x)
			return n, nil
		case num == valueDims && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			v.Dims = append(v.Dims, protowire.DecodeZigZag(x))
			return n, nil
		}
		return wire.Skip, nil
	})
	return v, err
}

func marshalTensor(t Tensor) []byte {
	var b []byte
	b = wire.AppendString(b, tensorName, t.Name)
	b = appendDims(b, tensorDims, t.Dims)
	for _, x := range t.Data {
		b = wire.AppendFloat64(b, tensorData, x)
	}
	return b
}

func unmarshalTensor(b []byte) (Tensor, error) {
	var t Tensor
	err := codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == tensorName && typ == protowire.BytesType:
			return codec.String(b, &t.Name)
		case num == tensorDims && typ == protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			t.Dims = append(t.Dims, protowire.DecodeZigZag(x))
			return n, nil
		case num == tensorData && typ == protowire.Fixed64Type:
			var x float64
			n := wire.ConsumeFloat64(b, &x)
			t.Data = append(t.Data, x)
			return n, nil
		}
		return wire.Skip, nil
	})
	return t, err
}

func marshalNode(n Node) []byte {
	var b []byte
	b = wire.AppendString(b, nodeName, n.Name)
	b = wire.AppendString(b, nodeOpType, n.OpType)
	for _, in := range n.Inputs {
		b = wire.AppendString(b, nodeInputs, in)
	}
	for _, out := range n.Outputs {
		b = wire.AppendString(b, nodeOutputs, out)
	}
	return b
}

func unmarshalNode(b []byte) (Node, error) {
	var n Node
	err := codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return wire.Skip, nil
		}
		var s string
		switch num {
		case nodeName:
			return codec.String(b, &n.Name)
		case nodeOpType:
			return codec.String(b, &n.OpType)
		case nodeInputs:
			c, err := codec.String(b, &s)
			n.Inputs = append(n.Inputs, s)
			return c, err
		case nodeOutputs:
			c, err := codec.String(b, &s)
			n.Outputs = append(n.Outputs, s)
			return c, err
		}
		return wire.Skip, nil
	})
	return n, err
}

func appendDims(b []byte, num protowire.Number, dims []int64) []byte {
	for _, d := range dims {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(d))
	}
	return b
}
