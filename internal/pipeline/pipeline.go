package pipeline

import (
	"context"
	"fmt"
	"sort"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/queue"
	"docflow/internal/services"
)

// Unit is one atomic operation of a phase. Run returns the
// application's verdict; an error means the unit could not be
// executed at all.
type Unit struct {
	Key string
	Run func(ctx context.Context, drv driver.Driver) (driver.UnitResult, error)
}

// Phase is an ordered batch of units. A phase only starts once every
// unit of the previous phase succeeded.
type Phase struct {
	Name  string
	Units []Unit
}

// Plan is the concrete execution plan a pipeline builds from one
// input document.
type Plan struct {
	Grouping *input.Grouping
	Phases   []Phase
	// Finalize runs after every phase succeeded and returns the
	// reference of the produced document. Nil when the workflow
	// creates nothing to reference.
	Finalize func(ctx context.Context, drv driver.Driver) (string, error)
}

// Pipeline turns a validated input document into an execution plan
// for one workflow kind.
type Pipeline interface {
	Kind() queue.Kind
	RequiredFields() []string
	Build(doc *input.Document) (*Plan, error)
}

// Registry maps workflow kinds to their pipelines.
type Registry struct {
	pipelines map[queue.Kind]Pipeline
}

// NewRegistry builds a registry from the given pipelines.
func NewRegistry(pipelines ...Pipeline) *Registry {
	r := &Registry{pipelines: make(map[queue.Kind]Pipeline, len(pipelines))}
	for _, p := range pipelines {
		r.pipelines[p.Kind()] = p
	}
	return r
}

// DefaultRegistry returns the registry with every built-in workflow.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPurchaseOrderPipeline(),
		NewReceiptPipeline(),
		NewFacturationPipeline(),
		NewReconciliationPipeline(),
	)
}

// Lookup returns the pipeline for a kind.
func (r *Registry) Lookup(kind queue.Kind) (Pipeline, error) {
	p, ok := r.pipelines[kind]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "lookup",
			fmt.Sprintf("no pipeline registered for kind %q", kind), nil)
	}
	return p, nil
}

// Kinds returns the registered kinds in stable order.
func (r *Registry) Kinds() []queue.Kind {
	kinds := make([]queue.Kind, 0, len(r.pipelines))
	for kind := range r.pipelines {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
