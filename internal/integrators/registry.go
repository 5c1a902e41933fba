package integrators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/spiralsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Stepper{
	"RK45": func() dynamo.Stepper { return NewRK45() },
	"RK23": func() dynamo.Stepper { return NewRK23() },
	"RK4":  func() dynamo.Stepper { return NewRK4() },
}

// New returns a fresh stepper for the named method. Names are matched
// case-insensitively.
func New(method string) (dynamo.Stepper, error) {
	ctor, ok := registry[strings.ToUpper(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("unknown integration method %q (available: %s)", method, strings.Join(Methods(), ", "))
	}
	return ctor(), nil
}

func Methods() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
