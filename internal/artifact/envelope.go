package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mikey/social-ads-predictor/internal/features"
	"github.com/mikey/social-ads-predictor/internal/wire"
	"github.com/zeebo/xxh3"
	"google.golang.org/protobuf/encoding/protowire"
)

// magic prefixes every encoded artifact
var magic = []byte("SAPA")

const checksumSize = 8

var codec = wire.Decoder{Err: ErrCorrupt}

// Envelope field numbers. Never renumber.
const (
	fieldName          protowire.Number = 1
	fieldVersion       protowire.Number = 2
	fieldFormatVersion protowire.Number = 3
	fieldFeatureOrder  protowire.Number = 4
	fieldScaler        protowire.Number = 5
	fieldGraph         protowire.Number = 6
	fieldMetrics       protowire.Number = 7
	fieldCreatedAt     protowire.Number = 8

	scalerFeatures protowire.Number = 1
	scalerMean     protowire.Number = 2
	scalerStd      protowire.Number = 3
	scalerSamples  protowire.Number = 4

	metricsTrain     protowire.Number = 1
	metricsTest      protowire.Number = 2
	metricsAccuracy  protowire.Number = 3
	metricsPrecision protowire.Number = 4
	metricsRecall    protowire.Number = 5
)

// Encode serializes an artifact: magic, protobuf wire body, xxh3 checksum of the body
func Encode(a *Artifact) []byte {
	var body []byte
	body = wire.AppendRepeatedString(body, fieldName, a.Name)
	body = wire.AppendRepeatedString(body, fieldVersion, a.Version)
	body = protowire.AppendTag(body, fieldFormatVersion, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(a.FormatVersion))
	for _, f := range a.FeatureOrder {
		body = wire.AppendRepeatedString(body, fieldFeatureOrder, f)
	}

	var scaler []byte
	for _, f := range a.Scaler.Features {
		scaler = wire.AppendRepeatedString(scaler, scalerFeatures, f)
	}
	for _, v := range a.Scaler.Mean {
		scaler = wire.AppendFloat64(scaler, scalerMean, v)
	}
	for _, v := range a.Scaler.Std {
		scaler = wire.AppendFloat64(scaler, scalerStd, v)
	}
	scaler = protowire.AppendTag(scaler, scalerSamples, protowire.VarintType)
	scaler = protowire.AppendVarint(scaler, uint64(a.Scaler.Samples))
	body = wire.AppendMessage(body, fieldScaler, scaler)
	body = wire.AppendMessage(body, fieldGraph, a.Graph)

	var metrics []byte
	metrics = protowire.AppendTag(metrics, metricsTrain, protowire.VarintType)
	metrics = protowire.AppendVarint(metrics, uint64(a.Metrics.TrainSamples))
	metrics = protowire.AppendTag(metrics, metricsTest, protowire.VarintType)
	metrics = protowire.AppendVarint(metrics, uint64(a.Metrics.TestSamples))
	metrics = wire.AppendFloat64(metrics, metricsAccuracy, a.Metrics.Accuracy)
	metrics = wire.AppendFloat64(metrics, metricsPrecision, a.Metrics.Precision)
	metrics = wire.AppendFloat64(metrics, metricsRecall, a.Metrics.Recall)
	body = wire.AppendMessage(body, fieldMetrics, metrics)

	body = protowire.AppendTag(body, fieldCreatedAt, protowire.VarintType)
	body = protowire.AppendVarint(body, protowire.EncodeZigZag(a.CreatedAt.UnixMilli()))

	out := make([]byte, 0, len(magic)+len(body)+checksumSize)
	out = append(out, magic...)
	out = append(out, body...)
	return binary.BigEndian.AppendUint64(out, xxh3.Hash(body))
}

// Decode parses and verifies an encoded artifact. Any problem is reported as ErrCorrupt.
func Decode(b []byte) (*Artifact, error) {
	if len(b) < len(magic)+checksumSize || !bytes.Equal(b[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: not an artifact envelope", ErrCorrupt)
	}
	body := b[len(magic) : len(b)-checksumSize]
	if want := binary.BigEndian.Uint64(b[len(b)-checksumSize:]); xxh3.Hash(body) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	a := &Artifact{}
	err := codec.Walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldName && typ == protowire.BytesType:
			return codec.String(b, &a.Name)
		case num == fieldVersion && typ == protowire.BytesType:
			return codec.String(b, &a.Version)
		case num == fieldFormatVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			a.FormatVersion = uint32(v)
			return n, nil
		case num == fieldFeatureOrder && typ == protowire.BytesType:
			var s string
			n, err := codec.String(b, &s)
			a.FeatureOrder = append(a.FeatureOrder, s)
			return n, err
		case num == fieldScaler && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error { return decodeScaler(m, &a.Scaler) })
		case num == fieldGraph && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error {
				a.Graph = append([]byte(nil), m...)
				return nil
			})
		case num == fieldMetrics && typ == protowire.BytesType:
			return codec.Message(b, func(m []byte) error { return decodeMetrics(m, &a.Metrics) })
		case num == fieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			a.CreatedAt = time.UnixMilli(protowire.DecodeZigZag(v)).UTC()
			return n, nil
		}
		return wire.Skip, nil
	})
	if err != nil {
		return nil, err
	}

	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, a.FormatVersion)
	}
	if err := ValidateName(a.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(a.Graph) == 0 {
		return nil, fmt.Errorf("%w: missing classifier graph", ErrCorrupt)
	}
	if err := a.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(a.FeatureOrder) != a.Scaler.Width() {
		return nil, fmt.Errorf("%w: %d features but scaler covers %d", ErrCorrupt, len(a.FeatureOrder), a.Scaler.Width())
	}
	if Digest(a) != a.Version {
		return nil, fmt.Errorf("%w: content does not match version %s", ErrCorrupt, a.Version)
	}
	return a, nil
}

func decodeScaler(b []byte, p *features.ScalerParams) error {
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == scalerFeatures && typ == protowire.BytesType:
			var s string
			n, err := codec.String(b, &s)
			p.Features = append(p.Features, s)
			return n, err
		case num == scalerMean && typ == protowire.Fixed64Type:
			var v float64
			n := wire.ConsumeFloat64(b, &v)
			p.Mean = append(p.Mean, v)
			return n, nil
		case num == scalerStd && typ == protowire.Fixed64Type:
			var v float64
			n := wire.ConsumeFloat64(b, &v)
			p.Std = append(p.Std, v)
			return n, nil
		case num == scalerSamples && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Samples = int(v)
			return n, nil
		}
		return wire.Skip, nil
	})
}

func decodeMetrics(b []byte, m *Metrics) error {
	return codec.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == metricsTrain && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TrainSamples = int(v)
			return n, nil
		case num == metricsTest && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TestSamples = int(v)
			return n, nil
		case num == metricsAccuracy && typ == protowire.Fixed64Type:
			return wire.ConsumeFloat64(b, &m.Accuracy), nil
		case num == metricsPrecision && typ == protowire.Fixed64Type:
			return wire.ConsumeFloat64(b, &m.Precision), nil
		case num == metricsRecall && typ == protowire.Fixed64Type:
			return wire.ConsumeFloat64(b, &m.Recall), nil
		}
		return wire.Skip, nil
	})
}
