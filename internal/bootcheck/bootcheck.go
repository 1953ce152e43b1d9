// Package bootcheck runs the pre-flight validations every brain CLI
// entry point performs before touching the store, per spec.md §4.15 and
// the bootstrap note in §9 ("reads env vars... once at startup"). Ported
// from original_source/tools/boot/boot_orchestrator.py.
package bootcheck

import (
	"fmt"
	"os"

	"github.com/pmos/brain/internal/registry"
	"github.com/pmos/brain/internal/resolver"
)

// Check is one boot-time validation's outcome.
type Check struct {
	Name string
	OK   bool
	Err  error
}

// Result is the full boot validation outcome.
type Result struct {
	Checks []Check
}

// OK reports whether every check passed.
func (r Result) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Run executes the standard boot sequence: root exists, registry is
// readable (a missing registry file counts as an empty registry),
// resolver cache is loadable (or buildable). The only write is the
// resolver cache that Build saves when it rebuilds.
func Run(root string) Result {
	var result Result

	info, err := os.Stat(root)
	result.Checks = append(result.Checks, Check{
		Name: "root_exists",
		OK:   err == nil && info != nil && info.IsDir(),
		Err:  err,
	})
	if err != nil {
		return result
	}

	_, regErr := registry.NewBuilder(root).Load()
	result.Checks = append(result.Checks, Check{Name: "registry_readable", OK: regErr == nil, Err: regErr})

	res := resolver.New(root)
	resErr := res.Build(false)
	result.Checks = append(result.Checks, Check{Name: "resolver_cache_loadable", OK: resErr == nil, Err: resErr})

	return result
}

// Summary renders Result as the textual lines spec.md §7 prescribes
// ("ERROR [field]: message" / a final summary).
func Summary(r Result) string {
	out := ""
	for _, c := range r.Checks {
		if c.OK {
			out += fmt.Sprintf("OK   [%s]\n", c.Name)
		} else {
			out += fmt.Sprintf("ERROR [%s]: %v\n", c.Name, c.Err)
		}
	}
	return out
}
