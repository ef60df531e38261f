package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/queue"
	"docflow/internal/services"
)

// receiptPipeline posts supplier delivery receipts. Rows are grouped
// supplier first, then purchase order: phase one opens one receipt
// per supplier and order, phase two posts the article lines into the
// opened receipts, and finalize saves the receipt register.
type receiptPipeline struct{}

// NewReceiptPipeline returns the goods receipt workflow.
func NewReceiptPipeline() Pipeline {
	return receiptPipeline{}
}

func (receiptPipeline) Kind() queue.Kind {
	return queue.KindReceipt
}

func (receiptPipeline) RequiredFields() []string {
	return []string{
		"CodeFrs",
		"BLFrs",
		"DateBC",
		"N_BC",
		"CodeArticle",
		"Quantite",
	}
}

func (p receiptPipeline) Build(doc *input.Document) (*Plan, error) {
	bySupplier := input.NewGrouping(doc.Rows, "CodeFrs")

	headers := Phase{Name: "receipt_headers"}
	lines := Phase{Name: "receipt_lines"}

	for _, supplier := range bySupplier.Keys() {
		byOrder := bySupplier.Subgroup(supplier, "N_BC")
		for _, order := range byOrder.Keys() {
			rows := byOrder.Rows(order)
			first := rows[0]
			key := supplier + "/" + order

			headers.Units = append(headers.Units, unitAction(driver.UnitAction{
				Phase: "receipt_headers",
				Key:   key,
				Fields: map[string]string{
					"code_frs": supplier,
					"n_bc":     order,
					"bl_frs":   first.Get("BLFrs"),
					"date_bc":  first.Get("DateBC"),
					"lignes":   strconv.Itoa(len(rows)),
				},
			}))

			for _, row := range rows {
				lines.Units = append(lines.Units, unitAction(driver.UnitAction{
					Phase: "receipt_lines",
					Key:   key + "/" + row.Get("CodeArticle"),
					Fields: map[string]string{
						"code_frs":     supplier,
						"n_bc":         order,
						"code_article": row.Get("CodeArticle"),
						"quantite":     row.Get("Quantite"),
					},
				}))
			}
		}
	}

	return &Plan{
		Grouping: bySupplier,
		Phases:   []Phase{headers, lines},
		Finalize: func(ctx context.Context, drv driver.Driver) (string, error) {
			result, err := drv.PerformUnitAction(ctx, driver.UnitAction{
				Phase: "finalize",
				Key:   "save_register",
			})
			if err != nil {
				return "", err
			}
			if !result.Success {
				return "", services.Wrap(services.ErrDriver, "pipeline", "finalize",
					fmt.Sprintf("receipt register save rejected: %s", result.Message), nil)
			}
			return result.Reference, nil
		},
	}, nil
}
