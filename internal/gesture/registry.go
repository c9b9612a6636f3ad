package gesture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrTargetNotFound is returned when a target ID is unknown.
	ErrTargetNotFound = errors.New("target not found")
	// ErrDuplicateTarget is returned when registering an ID twice.
	ErrDuplicateTarget = errors.New("target already registered")
	// ErrInvalidTarget is returned for targets with an unknown pool or
	// negative size.
	ErrInvalidTarget = errors.New("invalid target")
)

// Pool is a class of draggable targets.
type Pool string

const (
	// PoolTemplate holds toolbox entries; dragging one creates an instance.
	PoolTemplate Pool = "template"
	// PoolInstance holds live objects on the canvas.
	PoolInstance Pool = "instance"
)

// Rect is a bounding box in viewport pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the center of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// CenteredAt returns a box of the same size centered on p.
func (r Rect) CenteredAt(p Point) Rect {
	return Rect{X: p.X - r.W/2, Y: p.Y - r.H/2, W: r.W, H: r.H}
}

// Target is a draggable UI element.
type Target struct {
	ID     string `json:"id"`
	Pool   Pool   `json:"pool"`
	Label  string `json:"label,omitempty"`
	Bounds Rect   `json:"bounds"`
	// TemplateID is set on instances created from a template.
	TemplateID string `json:"template_id,omitempty"`
}

// Registry holds the draggable targets in two pools. Iteration order within
// a pool is registration order. It is safe for concurrent use.
type Registry struct {
	templateRadius float64
	instanceRadius float64

	mu        sync.RWMutex
	templates []*Target
	instances []*Target
}

// NewRegistry creates an empty registry with the given capture radii.
func NewRegistry(templateRadius, instanceRadius float64) *Registry {
	return &Registry{
		templateRadius: templateRadius,
		instanceRadius: instanceRadius,
	}
}

// Register adds a target. An empty ID is replaced by a generated one.
func (r *Registry) Register(t Target) (Target, error) {
	if t.Pool != PoolTemplate && t.Pool != PoolInstance {
		return Target{}, fmt.Errorf("%w: unknown pool %q", ErrInvalidTarget, t.Pool)
	}
	if t.Bounds.W < 0 || t.Bounds.H < 0 {
		return Target{}, fmt.Errorf("%w: negative size", ErrInvalidTarget)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findLocked(t.ID) != nil {
		return Target{}, fmt.Errorf("%w: %s", ErrDuplicateTarget, t.ID)
	}
	stored := t
	if t.Pool == PoolTemplate {
		r.templates = append(r.templates, &stored)
	} else {
		r.instances = append(r.instances, &stored)
	}
	return t, nil
}

// Remove deletes a target by ID.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pool := range []*[]*Target{&r.templates, &r.instances} {
		for i, t := range *pool {
			if t.ID == id {
				*pool = append((*pool)[:i], (*pool)[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrTargetNotFound, id)
}

// Get returns a target by ID.
func (r *Registry) Get(id string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t := r.findLocked(id); t != nil {
		return *t, true
	}
	return Target{}, false
}

// List returns all targets, templates first, each pool in registration order.
func (r *Registry) List() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Target, 0, len(r.templates)+len(r.instances))
	for _, t := range r.templates {
		out = append(out, *t)
	}
	for _, t := range r.instances {
		out = append(out, *t)
	}
	return out
}

// Resolve returns the target nearest to anchor by center distance. The
// template pool is searched first and wins whenever it has a candidate within
// its radius; instances are only considered otherwise. Equal distances keep
// the earlier registered target.
func (r *Registry) Resolve(anchor Point) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t := nearest(r.templates, anchor, r.templateRadius); t != nil {
		return *t, true
	}
	if t := nearest(r.instances, anchor, r.instanceRadius); t != nil {
		return *t, true
	}
	return Target{}, false
}

// MoveTo recenters an instance on p.
func (r *Registry) MoveTo(id string, p Point) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.instances {
		if t.ID == id {
			t.Bounds = t.Bounds.CenteredAt(p)
			return *t, nil
		}
	}
	return Target{}, fmt.Errorf("%w: instance %s", ErrTargetNotFound, id)
}

// Instantiate creates a new instance from a template, centered on p.
func (r *Registry) Instantiate(templateID string, p Point) (Target, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tmpl *Target
	for _, t := range r.templates {
		if t.ID == templateID {
			tmpl = t
			break
		}
	}
	if tmpl == nil {
		return Target{}, fmt.Errorf("%w: template %s", ErrTargetNotFound, templateID)
	}

	inst := &Target{
		ID:         uuid.New().String(),
		Pool:       PoolInstance,
		Label:      tmpl.Label,
		Bounds:     tmpl.Bounds.CenteredAt(p),
		TemplateID: tmpl.ID,
	}
	r.instances = append(r.instances, inst)
	return *inst, nil
}

func (r *Registry) findLocked(id string) *Target {
	for _, t := range r.templates {
		if t.ID == id {
			return t
		}
	}
	for _, t := range r.instances {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func nearest(pool []*Target, anchor Point, radius float64) *Target {
	var best *Target
	bestDist := radius
	for _, t := range pool {
		d := distance(anchor, t.Bounds.Center())
		if d > radius {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}
