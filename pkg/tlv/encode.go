package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Marshal encodes the tagged fields of v as the children of the constructed
// template identified by tag (e.g. "70" or "77"). An empty tag returns the
// children without a wrapper.
//
// Fields are emitted in declaration order, so the struct layout is the wire
// layout. Empty byte slices, nil pointers and nested structs without content
// are left out. The Unknown collector is appended verbatim.
func Marshal(tag string, v interface{}) ([]byte, error) {
	children, err := MarshalToPackets(v)
	if err != nil {
		return nil, err
	}

	packets := children
	if tag != "" {
		packets = []bertlv.TLV{{Tag: strings.ToUpper(tag), TLVs: children}}
	}

	data, err := bertlv.Encode(packets)
	if err != nil {
		return nil, fmt.Errorf("bertlv encode failed: %w", err)
	}
	return data, nil
}

// MarshalToPackets converts a tagged struct into bertlv packets without
// serializing them.
func MarshalToPackets(v interface{}) ([]bertlv.TLV, error) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %s", val.Kind())
	}

	l := layoutOf(val.Type())
	var packets []bertlv.TLV
	for _, f := range l.fields {
		encoded, err := encodeField(f.tag, val.Field(f.index))
		if err != nil {
			return nil, fmt.Errorf("field %s (%s): %w", f.name, f.tag, err)
		}
		packets = append(packets, encoded...)
	}

	if l.unknown >= 0 {
		if extra, ok := val.Field(l.unknown).Interface().([]bertlv.TLV); ok {
			packets = append(packets, extra...)
		}
	}
	return packets, nil
}

func encodeField(tag string, field reflect.Value) ([]bertlv.TLV, error) {
	switch {
	case isByteSlice(field):
		if field.Len() == 0 {
			return nil, nil
		}
		return []bertlv.TLV{{Tag: tag, Value: field.Bytes()}}, nil

	case isStructOrPtrToStruct(field):
		composite, err := encodeComposite(tag, field)
		if err != nil || composite == nil {
			return nil, err
		}
		return []bertlv.TLV{*composite}, nil

	case field.Kind() == reflect.Slice:
		var out []bertlv.TLV
		for i := 0; i < field.Len(); i++ {
			composite, err := encodeComposite(tag, field.Index(i))
			if err != nil {
				return nil, fmt.Errorf("occurrence %d: %w", i, err)
			}
			if composite != nil {
				out = append(out, *composite)
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported kind %s", field.Kind())
	}
}

func encodeComposite(tag string, field reflect.Value) (*bertlv.TLV, error) {
	if field.Kind() == reflect.Ptr && field.IsNil() {
		return nil, nil
	}

	children, err := MarshalToPackets(field.Interface())
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}
	return &bertlv.TLV{Tag: tag, TLVs: children}, nil
}
