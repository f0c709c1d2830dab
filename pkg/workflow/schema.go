package workflow

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/clinicflow/clinicflow/pkg/models"
	"github.com/clinicflow/clinicflow/pkg/persistence"
)

// actionDataSchemas holds the JSON schema for each action's payload. Actions
// without an entry accept any payload.
var actionDataSchemas = map[models.ActionType]map[string]any{
	models.ActionScanCustomer: {
		"type": "object",
		"properties": map[string]any{
			"scan_id":    map[string]any{"type": "string"},
			"skin_score": map[string]any{"type": "number"},
		},
	},
	models.ActionConfirmPayment: {
		"type":     "object",
		"required": []any{"amount"},
		"properties": map[string]any{
			"amount":         map[string]any{"type": "number", "exclusiveMinimum": 0},
			"payment_method": map[string]any{"type": "string"},
			"invoice_id":     map[string]any{"type": "string"},
		},
	},
	models.ActionScheduleAppointment: {
		"type":     "object",
		"required": []any{"beautician_id"},
		"properties": map[string]any{
			"beautician_id":  map[string]any{"type": "string", "minLength": 1},
			"appointment_at": map[string]any{"type": "string"},
			"room":           map[string]any{"type": "string"},
		},
	},
	models.ActionCompleteTreatment: {
		"type": "object",
		"properties": map[string]any{
			"treatment_notes": map[string]any{"type": "string"},
			"products_used":   map[string]any{"type": "array"},
		},
	},
}

// validateActionData checks the action payload against the action's schema.
func validateActionData(action models.ActionType, actionData map[string]any) error {
	schema, ok := actionDataSchemas[action]
	if !ok {
		return nil
	}

	if actionData == nil {
		actionData = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(actionData)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate action data: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("%w: %s", persistence.ErrInvalidActionData, strings.Join(descriptions, "; "))
	}

	return nil
}
