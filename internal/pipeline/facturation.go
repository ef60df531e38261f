package pipeline

import (
	"strings"

	"docflow/internal/driver"
	"docflow/internal/input"
	"docflow/internal/queue"
)

// facturationPipeline records supplier invoices. Each row is one
// independent invoice entry: fill the supplier invoice form with the
// FAF type, pick the delivery receipt, and save. There is no register
// to close, so the plan carries no finalize step.
type facturationPipeline struct{}

// NewFacturationPipeline returns the supplier invoicing workflow.
func NewFacturationPipeline() Pipeline {
	return facturationPipeline{}
}

func (facturationPipeline) Kind() queue.Kind {
	return queue.KindFacturation
}

func (facturationPipeline) RequiredFields() []string {
	return []string{
		"Code",
		"DFF",
		"FactureFrs",
		"Date",
		"BR",
	}
}

func (p facturationPipeline) Build(doc *input.Document) (*Plan, error) {
	grouping := input.NewGrouping(doc.Rows, "Code")

	invoices := Phase{Name: "invoices"}
	for _, row := range doc.Rows {
		code := row.Get("Code")
		invoiceNumber := invoiceReference(row.Get("FactureFrs"))

		// Nom is optional on the input file.
		invoices.Units = append(invoices.Units, unitAction(driver.UnitAction{
			Phase: "invoices",
			Key:   code + "/" + invoiceNumber,
			Fields: map[string]string{
				"type_facture": "FAF",
				"code":         code,
				"dff":          row.Get("DFF"),
				"facture_frs":  invoiceNumber,
				"date":         row.Get("Date"),
				"br":           row.Get("BR"),
				"nom":          row.Get("Nom"),
			},
		}))
	}

	return &Plan{
		Grouping: grouping,
		Phases:   []Phase{invoices},
	}, nil
}

// invoiceReference normalizes a supplier invoice number to the form
// the application expects, with the FN° prefix exactly once.
func invoiceReference(value string) string {
	if strings.HasPrefix(value, "FN°") {
		return value
	}
	return "FN°" + value
}
