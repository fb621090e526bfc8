package validator

import (
	"fmt"
	"reflect"
)

// Validate returns an error naming the component when any dependency is nil
// or holds its zero value.
func Validate(name string, deps ...any) error {
	for i, dep := range deps {
		if missing(dep) {
			return fmt.Errorf("missing required deps for component: %s (dependency %d)", name, i)
		}
	}

	return nil
}

func missing(dep any) bool {
	v := reflect.ValueOf(dep)
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
