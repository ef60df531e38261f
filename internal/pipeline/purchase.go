package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/queue"
	"docflow/internal/reconcile"
	"docflow/internal/services"
)

// purchaseOrderPipeline turns validated purchase request rows into a
// purchase order. Two gated phases: every distinct article is
// registered first, then one purchase request per request number.
// Finalize asks the application to generate the order document.
type purchaseOrderPipeline struct{}

// NewPurchaseOrderPipeline returns the purchase order workflow.
func NewPurchaseOrderPipeline() Pipeline {
	return purchaseOrderPipeline{}
}

func (purchaseOrderPipeline) Kind() queue.Kind {
	return queue.KindPurchaseOrder
}

func (purchaseOrderPipeline) RequiredFields() []string {
	return []string{
		"Numero_DA",
		"Acheteur",
		"Code_Fournisseur",
		"Email_Fournisseur",
		"TEL_Fournisseu",
		"Code_Article",
		"Montant",
		"Marque",
		"Affaire",
	}
}

func (p purchaseOrderPipeline) Build(doc *input.Document) (*Plan, error) {
	grouping := input.NewGrouping(doc.Rows, "Numero_DA")

	articles := Phase{Name: "articles"}
	firstRowByArticle := make(map[string]input.Row)
	for _, row := range doc.Rows {
		code := row.Get("Code_Article")
		if _, seen := firstRowByArticle[code]; !seen {
			firstRowByArticle[code] = row
		}
	}
	for _, code := range input.UniqueValues(doc.Rows, "Code_Article") {
		row := firstRowByArticle[code]
		action := driver.UnitAction{
			Phase: "articles",
			Key:   code,
			Fields: map[string]string{
				"code_article": code,
				"marque":       row.Get("Marque"),
			},
		}
		articles.Units = append(articles.Units, unitAction(action))
	}

	requests := Phase{Name: "purchase_requests"}
	for _, requestNumber := range grouping.Keys() {
		rows := grouping.Rows(requestNumber)
		first := rows[0]

		total := 0.0
		for _, row := range rows {
			amount, err := reconcile.ParseAmount(row.Get("Montant"))
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "pipeline", "purchase_requests",
					fmt.Sprintf("request %s line %d: %v", requestNumber, row.Line, err), nil)
			}
			total += amount
		}

		action := driver.UnitAction{
			Phase: "purchase_requests",
			Key:   requestNumber,
			Fields: map[string]string{
				"numero_da":         requestNumber,
				"acheteur":          first.Get("Acheteur"),
				"code_fournisseur":  first.Get("Code_Fournisseur"),
				"email_fournisseur": first.Get("Email_Fournisseur"),
				"tel_fournisseur":   first.Get("TEL_Fournisseu"),
				"affaire":           first.Get("Affaire"),
				"montant_total":     strconv.FormatFloat(total, 'f', 2, 64),
				"lignes":            strconv.Itoa(len(rows)),
			},
		}
		requests.Units = append(requests.Units, unitAction(action))
	}

	return &Plan{
		Grouping: grouping,
		Phases:   []Phase{articles, requests},
		Finalize: func(ctx context.Context, drv driver.Driver) (string, error) {
			result, err := drv.PerformUnitAction(ctx, driver.UnitAction{
				Phase: "finalize",
				Key:   "generate_order",
			})
			if err != nil {
				return "", err
			}
			if !result.Success {
				return "", services.Wrap(services.ErrDriver, "pipeline", "finalize",
					fmt.Sprintf("order generation rejected: %s", result.Message), nil)
			}
			return result.Reference, nil
		},
	}, nil
}

// unitAction wraps a static action as a unit.
func unitAction(action driver.UnitAction) Unit {
	return Unit{
		Key: action.Key,
		Run: func(ctx context.Context, drv driver.Driver) (driver.UnitResult, error) {
			return drv.PerformUnitAction(ctx, action)
		},
	}
}
