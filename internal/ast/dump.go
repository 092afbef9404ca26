package ast

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Dump renders a tree as indented JSON. Every node object carries a "type"
// field naming its Go type, and all "loc" fields are left out.
func Dump(n Node) ([]byte, error) {
	return json.MarshalIndent(plain(reflect.ValueOf(n)), "", "  ")
}

var nodeType = reflect.TypeOf((*Node)(nil)).Elem()

func plain(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer && v.Type().Implements(nodeType) {
			m := plainStruct(v.Elem())
			m["type"] = v.Elem().Type().Name()
			return m
		}
		return plain(v.Elem())
	case reflect.Struct:
		return plainStruct(v)
	case reflect.Slice:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = plain(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}

func plainStruct(v reflect.Value) map[string]any {
	m := make(map[string]any)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			for k, val := range plainStruct(v.Field(i)) {
				m[k] = val
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" {
			name = f.Name
		}
		if name == "loc" || name == "-" {
			continue
		}
		fv := v.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		m[name] = plain(fv)
	}
	return m
}
