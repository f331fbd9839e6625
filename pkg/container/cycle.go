package container

import (
	"github.com/sunlightlinux/svcengine/pkg/controller"
)

// detectCycle runs the install-time DFS from spec §4.6: starting at the
// registrations start provides, walk their dependents transitively. If
// the walk re-encounters start, the visit stack (in dependency order,
// oldest first) is the cycle. Aggregation services (no provides) and
// controllers already REMOVED cannot introduce a cycle and are pruned.
func detectCycle(start *controller.Controller) []string {
	visited := make(map[*controller.Controller]bool)
	var path []string

	var walk func(c *controller.Controller) bool
	walk = func(c *controller.Controller) bool {
		if visited[c] {
			return false
		}
		visited[c] = true
		path = append(path, c.Name())

		for _, reg := range c.ProvidedRegistrations() {
			for _, dep := range reg.Dependents() {
				next, ok := dep.(*controller.Controller)
				if !ok {
					continue
				}
				if next == start {
					return true
				}
				if len(next.Provides()) == 0 {
					continue // aggregation service: cannot close a cycle
				}
				if next.State() == controller.Removed {
					continue
				}
				if walk(next) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		return false
	}

	if walk(start) {
		return path
	}
	return nil
}
