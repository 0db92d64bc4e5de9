package compiler

import (
	"fmt"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// DanglingRefError reports a link endpoint naming a local id that never
// resolved to a widget in the batch.
type DanglingRefError struct {
	LocalID string
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("link references unknown widget %q", e.LocalID)
}

// ReadyLink is a link whose endpoints have both resolved to real sections.
type ReadyLink struct {
	Spec   layout.LinkSpec
	Source WidgetInfo
	Target WidgetInfo
}

// Registry tracks the widgets of one compilation pass. It decouples the
// order widgets are created in from the order links mention them: a link
// may be enqueued before either endpoint exists and is released once both
// have resolved. A Registry lives for exactly one compiler invocation.
type Registry struct {
	declared map[string]bool
	resolved map[string]WidgetInfo
	pending  []layout.LinkSpec
	ready    []ReadyLink
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		declared: make(map[string]bool),
		resolved: make(map[string]WidgetInfo),
	}
}

// Declare records intent to create a widget under localID. It fails on a
// duplicate id inside the same batch.
func (r *Registry) Declare(localID string) error {
	if r.declared[localID] {
		return fmt.Errorf("widget id %q declared twice in one batch", localID)
	}
	r.declared[localID] = true
	return nil
}

// Resolve records the created (or pre-existing) section behind localID and
// releases any pending link whose endpoints are now both known.
func (r *Registry) Resolve(localID string, info WidgetInfo) error {
	if _, ok := r.resolved[localID]; ok {
		return fmt.Errorf("widget id %q resolved twice in one batch", localID)
	}
	r.resolved[localID] = info
	r.flush()
	return nil
}

// Lookup returns the resolved widget behind localID.
func (r *Registry) Lookup(localID string) (WidgetInfo, bool) {
	info, ok := r.resolved[localID]
	return info, ok
}

// EnqueueLink stores spec until both endpoints resolve; if they already
// have, the link is ready immediately.
func (r *Registry) EnqueueLink(spec layout.LinkSpec) {
	r.pending = append(r.pending, spec)
	r.flush()
}

// Ready drains the links released so far, in the order they became ready.
func (r *Registry) Ready() []ReadyLink {
	out := r.ready
	r.ready = nil
	return out
}

// CheckComplete fails if any enqueued link still references an unresolved
// local id after the whole batch resolved. Called once all widgets exist.
func (r *Registry) CheckComplete() error {
	for _, spec := range r.pending {
		if _, ok := r.resolved[spec.Source]; !ok {
			return &DanglingRefError{LocalID: spec.Source}
		}
		if _, ok := r.resolved[spec.Target]; !ok {
			return &DanglingRefError{LocalID: spec.Target}
		}
	}
	return nil
}

func (r *Registry) flush() {
	var still []layout.LinkSpec
	for _, spec := range r.pending {
		src, okSrc := r.resolved[spec.Source]
		tgt, okTgt := r.resolved[spec.Target]
		if okSrc && okTgt {
			r.ready = append(r.ready, ReadyLink{Spec: spec, Source: src, Target: tgt})
			continue
		}
		still = append(still, spec)
	}
	r.pending = still
}
