package tlv

import (
	"reflect"
	"strings"
)

// field is a struct field bound to a BER-TLV tag.
type field struct {
	index int
	name  string
	tag   string
}

// layout is how a struct type maps onto TLV objects, in declaration order.
// unknown is the index of the collector for unclaimed objects, or -1.
type layout struct {
	fields  []field
	unknown int
}

func layoutOf(t reflect.Type) layout {
	l := layout{unknown: -1}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		cfg := sf.Tag.Get("tlv")
		if cfg == ",unknown" || sf.Name == "Unknown" {
			l.unknown = i
			continue
		}
		if cfg == "" {
			continue
		}
		tag := strings.ToUpper(strings.Split(cfg, ",")[0])
		l.fields = append(l.fields, field{index: i, name: sf.Name, tag: tag})
	}
	return l
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isStructOrPtrToStruct(v reflect.Value) bool {
	return v.Kind() == reflect.Struct || (v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Struct)
}
