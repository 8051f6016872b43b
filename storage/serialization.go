// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/rowseek/core"
)

// descriptorMUS encodes the persistent part of a SourceDescriptor. Ordinal and
// Generation belong to a running catalog and are not stored.
type descriptorMUS struct{}

// DescriptorMUS is the serializer for stored source descriptors.
var DescriptorMUS = descriptorMUS{}

func (descriptorMUS) Size(d core.SourceDescriptor) int {
	size := ord.String.Size(d.ID) + ord.String.Size(d.Name)
	size += varint.Int.Size(len(d.Columns))
	for _, c := range d.Columns {
		size += ord.String.Size(c)
	}
	size += varint.Int.Size(d.RowCount)
	size += varint.Int64.Size(d.LoadedAt.UnixMicro())
	return size
}

func (descriptorMUS) Marshal(d core.SourceDescriptor, bs []byte) (n int) {
	n = ord.String.Marshal(d.ID, bs)
	n += ord.String.Marshal(d.Name, bs[n:])
	n += varint.Int.Marshal(len(d.Columns), bs[n:])
	for _, c := range d.Columns {
		n += ord.String.Marshal(c, bs[n:])
	}
	n += varint.Int.Marshal(d.RowCount, bs[n:])
	n += varint.Int64.Marshal(d.LoadedAt.UnixMicro(), bs[n:])
	return n
}

func (descriptorMUS) Unmarshal(bs []byte) (d core.SourceDescriptor, n int, err error) {
	var m int
	if d.ID, m, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += m
	if d.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	var count int
	if count, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	if count < 0 || count > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	d.Columns = make([]string, count)
	for i := range d.Columns {
		if d.Columns[i], m, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += m
	}
	if d.RowCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	var micros int64
	if micros, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += m
	d.LoadedAt = time.UnixMicro(micros).UTC()
	return
}

// valuesMUS encodes one row's positional values as a count followed by
// kind-tagged scalars.
type valuesMUS struct{}

// ValuesMUS is the serializer for stored row values.
var ValuesMUS = valuesMUS{}

func (valuesMUS) Size(vals []core.Value) int {
	size := varint.Int.Size(len(vals))
	for _, v := range vals {
		size += varint.Int.Size(int(v.Kind()))
		switch v.Kind() {
		case core.KindString:
			size += ord.String.Size(v.Str())
		case core.KindInt:
			size += varint.Int64.Size(v.Int())
		case core.KindFloat:
			size += varint.Float64.Size(v.Float())
		case core.KindBool:
			size += ord.Bool.Size(v.Bool())
		case core.KindTime:
			size += ord.String.Size(v.Time().Format(time.RFC3339Nano))
		}
	}
	return size
}

func (valuesMUS) Marshal(vals []core.Value, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vals), bs)
	for _, v := range vals {
		n += varint.Int.Marshal(int(v.Kind()), bs[n:])
		switch v.Kind() {
		case core.KindString:
			n += ord.String.Marshal(v.Str(), bs[n:])
		case core.KindInt:
			n += varint.Int64.Marshal(v.Int(), bs[n:])
		case core.KindFloat:
			n += varint.Float64.Marshal(v.Float(), bs[n:])
		case core.KindBool:
			n += ord.Bool.Marshal(v.Bool(), bs[n:])
		case core.KindTime:
			n += ord.String.Marshal(v.Time().Format(time.RFC3339Nano), bs[n:])
		}
	}
	return n
}

func (valuesMUS) Unmarshal(bs []byte) (vals []core.Value, n int, err error) {
	var count, m int
	if count, m, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	n += m
	if count < 0 || count > len(bs)-n {
		err = ErrTruncatedData
		return
	}
	vals = make([]core.Value, count)
	for i := range vals {
		var kind int
		if kind, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += m
		switch core.Kind(kind) {
		case core.KindAbsent:
			vals[i], m = core.Absent, 0
		case core.KindString:
			var s string
			if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			vals[i] = core.StringValue(s)
		case core.KindInt:
			var x int64
			if x, m, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
				return
			}
			vals[i] = core.IntValue(x)
		case core.KindFloat:
			var f float64
			if f, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
				return
			}
			vals[i] = core.FloatValue(f)
		case core.KindBool:
			var b bool
			if b, m, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
				return
			}
			vals[i] = core.BoolValue(b)
		case core.KindTime:
			var s string
			if s, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return
			}
			var t time.Time
			if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
				return
			}
			vals[i] = core.TimeValue(t)
		default:
			err = fmt.Errorf("unknown value kind %d", kind)
			return
		}
		n += m
	}
	return
}

// MarshalDescriptor serializes a SourceDescriptor to bytes.
func MarshalDescriptor(d *core.SourceDescriptor) []byte {
	buf := make([]byte, DescriptorMUS.Size(*d))
	DescriptorMUS.Marshal(*d, buf)
	return buf
}

// UnmarshalDescriptor deserializes a SourceDescriptor from bytes.
func UnmarshalDescriptor(data []byte) (*core.SourceDescriptor, error) {
	d, _, err := DescriptorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor: %w", ErrSerializationFailed, err)
	}
	return &d, nil
}

// MarshalValues serializes a row's values to bytes.
func MarshalValues(vals []core.Value) []byte {
	buf := make([]byte, ValuesMUS.Size(vals))
	ValuesMUS.Marshal(vals, buf)
	return buf
}

// UnmarshalValues deserializes a row's values from bytes.
func UnmarshalValues(data []byte) ([]core.Value, error) {
	vals, _, err := ValuesMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: row: %w", ErrSerializationFailed, err)
	}
	return vals, nil
}

// RowValues returns a row's values in header order, ready for MarshalValues.
func RowValues(r *core.Row) []core.Value {
	vals := make([]core.Value, r.Len())
	for i := range vals {
		vals[i] = r.At(i)
	}
	return vals
}
