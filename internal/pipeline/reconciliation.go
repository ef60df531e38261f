package pipeline

import (
	"context"
	"fmt"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/queue"
	"docflow/internal/reconcile"
)

// reconciliationPipeline letters invoice and credit advice pairs. One
// unit per input row: the account view is read, the pair is matched,
// and both lines are tagged together. Account reads are cached for
// the run and invalidated after each successful lettering, since the
// tags it applies change later reads.
type reconciliationPipeline struct{}

// NewReconciliationPipeline returns the lettrage workflow.
func NewReconciliationPipeline() Pipeline {
	return reconciliationPipeline{}
}

func (reconciliationPipeline) Kind() queue.Kind {
	return queue.KindReconciliation
}

func (reconciliationPipeline) RequiredFields() []string {
	return []string{
		"Compte",
		"Code",
		"Facture",
		"N-Avis",
	}
}

func (p reconciliationPipeline) Build(doc *input.Document) (*Plan, error) {
	grouping := input.NewGrouping(doc.Rows, "Compte")
	cache := make(map[string][]reconcile.Entry)

	phase := Phase{Name: "lettrage"}
	for _, row := range doc.Rows {
		row := row
		account := row.Get("Compte")
		invoice := row.Get("Facture")
		advice := row.Get("N-Avis")

		phase.Units = append(phase.Units, Unit{
			Key: fmt.Sprintf("%s/%s", account, invoice),
			Run: func(ctx context.Context, drv driver.Driver) (driver.UnitResult, error) {
				entries, ok := cache[account]
				if !ok {
					loaded, err := drv.LedgerEntries(ctx, account)
					if err != nil {
						return driver.UnitResult{}, err
					}
					cache[account] = loaded
					entries = loaded
				}

				match := reconcile.Match(entries, invoice, advice)
				if !match.Matched() {
					return driver.UnitResult{Success: false, Message: match.Message}, nil
				}

				positions := []int{match.Invoice.Position, match.Advice.Position}
				if err := drv.MarkReconciled(ctx, account, positions); err != nil {
					return driver.UnitResult{}, err
				}
				delete(cache, account)
				return driver.UnitResult{Success: true, Message: match.Message}, nil
			},
		})
	}

	return &Plan{
		Grouping: grouping,
		Phases:   []Phase{phase},
	}, nil
}
