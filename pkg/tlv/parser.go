// Package tlv maps BER-TLV (Basic Encoding Rules - Tag-Length-Value) data to
// and from Go structures using struct tags.
//
// A field tagged `tlv:"57"` holds the value of tag '57'. Byte slices receive
// the raw value, nested structs receive the children of a constructed tag,
// slices of structs collect repeated occurrences, and a []bertlv.TLV field
// tagged `tlv:",unknown"` collects every tag no other field claimed.
package tlv

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshal decodes data and maps it onto target, a pointer to a struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// DecodeExact decodes data and checks that it is the canonical encoding of the
// result: every declared length matches its content and nothing trails the
// last object. Non-minimal length fields are rejected as well.
func DecodeExact(data []byte) ([]bertlv.TLV, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("bertlv decode failed: %w", err)
	}

	reencoded, err := bertlv.Encode(packets)
	if err != nil {
		return nil, fmt.Errorf("bertlv encode failed: %w", err)
	}
	if !bytes.Equal(reencoded, data) {
		return nil, fmt.Errorf("inconsistent lengths: %d bytes decode to %d canonical bytes", len(data), len(reencoded))
	}
	return packets, nil
}

// UnmarshalFromPackets maps already decoded objects onto target. An object
// whose tag appears twice is appended when the field is a slice of structs
// and overwrites otherwise.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	l := layoutOf(v.Type())

	var leftovers []bertlv.TLV
next:
	for _, p := range packets {
		for _, f := range l.fields {
			if !strings.EqualFold(p.Tag, f.tag) {
				continue
			}
			if err := assign(p, v.Field(f.index)); err != nil {
				return fmt.Errorf("tag %s: %w", f.tag, err)
			}
			continue next
		}
		leftovers = append(leftovers, p)
	}

	if l.unknown >= 0 && len(leftovers) > 0 {
		v.Field(l.unknown).Set(reflect.ValueOf(leftovers))
	}
	return nil
}

func assign(p bertlv.TLV, dst reflect.Value) error {
	switch {
	case isByteSlice(dst):
		dst.SetBytes(rawValue(p))
		return nil

	case isStructOrPtrToStruct(dst):
		return fill(p, dst)

	case dst.Kind() == reflect.Slice && isStructOrPtrToStruct(reflect.New(dst.Type().Elem()).Elem()):
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := fill(p, elem); err != nil {
			return err
		}
		dst.Set(reflect.Append(dst, elem))
		return nil

	default:
		return fmt.Errorf("unsupported field kind %s", dst.Kind())
	}
}

// fill decodes the children of a constructed object into a struct or a
// pointer to one, allocating the pointer if needed.
func fill(p bertlv.TLV, dst reflect.Value) error {
	var ptr reflect.Value
	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		ptr = dst
	} else {
		ptr = dst.Addr()
	}

	if len(p.TLVs) > 0 {
		return UnmarshalFromPackets(p.TLVs, ptr.Interface())
	}
	return Unmarshal(p.Value, ptr.Interface())
}

// rawValue is the value bytes of p, re-encoding the children of a
// constructed object.
func rawValue(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}
