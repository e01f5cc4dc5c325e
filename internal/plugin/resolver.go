// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package plugin

import (
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/wizardmod/wizard/pkg/errutil"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// Failure is one plugin that could not be loaded, with the reason.
type Failure struct {
	Plugin string `json:"plugin"`
	Err    error  `json:"-"`
}

// Code returns the oops code of the failure.
func (f Failure) Code() string {
	if c, ok := errutil.Code(f.Err).(string); ok {
		return c
	}
	return ""
}

// LoadPlan is the lenient resolution of a candidate batch.
type LoadPlan struct {
	// Order lists loadable plugins; every plugin follows its dependencies.
	Order []string
	// Failures holds one entry per unloadable plugin, sorted by name.
	Failures []Failure
	// Ignored lists absent optional dependencies as "plugin -> dependency".
	Ignored []string
}

// Failed reports whether name was rejected by the plan.
func (p *LoadPlan) Failed(name string) bool {
	for _, f := range p.Failures {
		if f.Plugin == name {
			return true
		}
	}
	return false
}

// depGraph holds edges from a plugin to the batch members it depends on.
// Node and edge lists are sorted by name so traversal is deterministic.
type depGraph struct {
	nodes []string
	edges map[string][]string
}

func (g *depGraph) without(removed map[string]bool) *depGraph {
	out := &depGraph{edges: make(map[string][]string)}
	for _, n := range g.nodes {
		if removed[n] {
			continue
		}
		out.nodes = append(out.nodes, n)
		for _, d := range g.edges[n] {
			if !removed[d] {
				out.edges[n] = append(out.edges[n], d)
			}
		}
	}
	return out
}

// resolution is the dependency check shared by Resolve and Plan.
type resolution struct {
	byName     map[string]wizard.Descriptor
	running    map[string]wizard.Descriptor
	graph      *depGraph
	unresolved map[string]error
	// rejected names plugins dropped before planning that are neither in
	// the batch nor running. Dependents fail instead of going unresolved.
	rejected map[string]bool
	ignored  []string
}

// analyze checks every declared dependency against the batch and the
// already-running plugins in available. Batch names must be unique.
func analyze(descs, available []wizard.Descriptor, rejected []string) *resolution {
	r := &resolution{
		byName:     make(map[string]wizard.Descriptor, len(descs)),
		running:    make(map[string]wizard.Descriptor, len(available)),
		graph:      &depGraph{edges: make(map[string][]string)},
		unresolved: make(map[string]error),
		rejected:   make(map[string]bool, len(rejected)),
	}
	for _, d := range available {
		r.running[d.Name] = d
	}
	for _, d := range descs {
		r.byName[d.Name] = d
		r.graph.nodes = append(r.graph.nodes, d.Name)
	}
	slices.Sort(r.graph.nodes)
	for _, name := range rejected {
		if _, ok := r.byName[name]; ok {
			continue
		}
		if _, ok := r.running[name]; ok {
			continue
		}
		r.rejected[name] = true
	}

	for _, name := range r.graph.nodes {
		d := r.byName[name]
		for _, dep := range d.Dependencies {
			target, inBatch := r.byName[dep.Name]
			known := inBatch
			if !inBatch {
				target, known = r.running[dep.Name]
			}
			if !known || !satisfies(target.Version, dep.Version) {
				if dep.Optional {
					r.ignored = append(r.ignored, fmt.Sprintf("%s -> %s", name, dep.Name))
					continue
				}
				if r.rejected[dep.Name] {
					continue
				}
				if _, seen := r.unresolved[name]; !seen {
					r.unresolved[name] = ErrUnresolvedDependency(name, dep.Name, dep.Version)
				}
				continue
			}
			if inBatch {
				r.graph.edges[name] = append(r.graph.edges[name], dep.Name)
			}
		}
		slices.Sort(r.graph.edges[name])
	}
	return r
}

// conflicts returns a CONFLICTING_PLUGIN error for every batch plugin that
// cannot run next to another live plugin. A batch plugin fails when it
// declares a conflict with a matching batch member or running plugin, or
// when a running plugin declares a conflict with it. Plugins in failed are
// not live and neither cause nor receive conflicts.
func (r *resolution) conflicts(failed map[string]error) map[string]error {
	out := make(map[string]error)
	live := func(name string) (wizard.Descriptor, bool) {
		if d, ok := r.byName[name]; ok {
			_, gone := failed[name]
			return d, !gone
		}
		d, ok := r.running[name]
		return d, ok
	}
	for _, name := range r.graph.nodes {
		if _, gone := failed[name]; gone {
			continue
		}
		for _, c := range r.byName[name].Conflicts {
			target, ok := live(c.Name)
			if ok && satisfies(target.Version, c.Version) {
				out[name] = ErrConflictingPlugin(name, c.Name, c.Reason)
				break
			}
		}
	}
	runningNames := make([]string, 0, len(r.running))
	for n := range r.running {
		runningNames = append(runningNames, n)
	}
	slices.Sort(runningNames)
	for _, rn := range runningNames {
		for _, c := range r.running[rn].Conflicts {
			target, inBatch := r.byName[c.Name]
			if !inBatch {
				continue
			}
			if _, gone := failed[c.Name]; gone {
				continue
			}
			if _, seen := out[c.Name]; seen {
				continue
			}
			if satisfies(target.Version, c.Version) {
				out[c.Name] = ErrConflictingPlugin(c.Name, rn, c.Reason)
			}
		}
	}
	return out
}

// satisfies reports whether version meets constraint. An empty constraint
// always matches; an unparseable one never does.
func satisfies(version, constraint string) bool {
	if constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// findCycle runs a depth-first search over g, roots and neighbours in
// ascending name order, and returns the first cycle found in path order.
func findCycle(g *depGraph) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	color := make(map[string]int, len(g.nodes))
	var path []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = visiting
		path = append(path, n)
		for _, d := range g.edges[n] {
			switch color[d] {
			case visiting:
				start := slices.Index(path, d)
				cycle = slices.Clone(path[start:])
				return true
			case unvisited:
				if visit(d) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = done
		return false
	}

	for _, n := range g.nodes {
		if color[n] == unvisited && visit(n) {
			return cycle
		}
	}
	return nil
}

// topoSort orders an acyclic graph with Kahn's algorithm, always taking
// the smallest ready name next.
func topoSort(g *depGraph) []string {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string)
	for _, n := range g.nodes {
		indegree[n] += 0
		for _, d := range g.edges[n] {
			indegree[n]++
			dependents[d] = append(dependents[d], n)
		}
	}

	var ready []string
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				i, _ := slices.BinarySearch(ready, dep)
				ready = slices.Insert(ready, i, dep)
			}
		}
	}
	return order
}

// Resolve computes a strict load order for descs. The first unresolved
// dependency or conflict (by plugin name) or cycle aborts resolution.
func Resolve(descs []wizard.Descriptor) ([]string, error) {
	if name, dup := duplicateName(descs); dup {
		return nil, ErrDuplicateName(name)
	}
	r := analyze(descs, nil, nil)
	for _, name := range r.graph.nodes {
		if err, ok := r.unresolved[name]; ok {
			return nil, err
		}
	}
	conflicts := r.conflicts(nil)
	for _, name := range r.graph.nodes {
		if err, ok := conflicts[name]; ok {
			return nil, err
		}
	}
	if cycle := findCycle(r.graph); cycle != nil {
		return nil, ErrCyclicDependency(cycle)
	}
	return topoSort(r.graph), nil
}

// Plan resolves descs leniently: every plugin that cannot load gets one
// failure and the rest are ordered. available lists plugins already
// running, which satisfy dependencies without being reordered. rejected
// lists plugins dropped before planning; their dependents fail with
// DEPENDENCY_FAILED.
func Plan(descs, available []wizard.Descriptor, rejected []string) *LoadPlan {
	r := analyze(descs, available, rejected)
	failed := make(map[string]error, len(r.unresolved))

	// Peel cycles off one at a time until the remainder is acyclic. Cycle
	// members with a missing dependency still report the cycle.
	for {
		cycle := findCycle(r.graph.without(nodeSet(failed)))
		if cycle == nil {
			break
		}
		err := ErrCyclicDependency(cycle)
		for _, n := range cycle {
			if _, ok := failed[n]; !ok {
				failed[n] = err
			}
		}
	}
	for name, err := range r.unresolved {
		if _, ok := failed[name]; !ok {
			failed[name] = err
		}
	}
	propagateFailures(r, failed)

	for name, err := range r.conflicts(failed) {
		failed[name] = err
	}
	propagateFailures(r, failed)

	plan := &LoadPlan{Ignored: r.ignored}
	removed := make(map[string]bool, len(failed))
	for _, name := range r.graph.nodes {
		if err, ok := failed[name]; ok {
			removed[name] = true
			plan.Failures = append(plan.Failures, Failure{Plugin: name, Err: err})
		}
	}
	plan.Order = topoSort(r.graph.without(removed))
	return plan
}

// nodeSet returns the keys of failed. Failed plugins are left out of later
// cycle searches so each member is reported once.
func nodeSet(failed map[string]error) map[string]bool {
	out := make(map[string]bool, len(failed))
	for n := range failed {
		out[n] = true
	}
	return out
}

// propagateFailures marks every plugin with a failed or rejected required
// dependency, directly or transitively, as DependencyFailed.
func propagateFailures(r *resolution, failed map[string]error) {
	for changed := true; changed; {
		changed = false
		for _, name := range r.graph.nodes {
			if _, ok := failed[name]; ok {
				continue
			}
			for _, dep := range r.byName[name].Dependencies {
				if dep.Optional {
					continue
				}
				_, ok := failed[dep.Name]
				if ok || r.rejected[dep.Name] {
					failed[name] = ErrDependencyFailed(name, dep.Name)
					changed = true
					break
				}
			}
		}
	}
}

func duplicateName(descs []wizard.Descriptor) (string, bool) {
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		if seen[d.Name] {
			return d.Name, true
		}
		seen[d.Name] = true
	}
	return "", false
}
