package tool

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

func draftDef() Definition {
	return Definition{
		Name: "create_draft_listing",
		Params: map[string]*schema.ParameterInfo{
			"product_id":    {Type: schema.String, Required: true},
			"listing_type":  {Type: schema.String, Required: true, Enum: []string{"auction", "buy_now"}},
			"start_price":   {Type: schema.Number},
			"duration_days": {Type: schema.Integer},
			"primary":       {Type: schema.Boolean},
		},
		Handler: noopHandler,
	}
}

func TestValidateArgsAcceptsCoercedValues(t *testing.T) {
	t.Parallel()

	// JSON decoding turns all numbers into float64.
	args, err := ValidateArgs(draftDef(), map[string]any{
		"product_id":    "p-1",
		"listing_type":  "auction",
		"start_price":   float64(250),
		"duration_days": float64(7),
		"primary":       true,
	})
	if err != nil {
		t.Fatalf("ValidateArgs() error = %v", err)
	}
	if got, ok := args["duration_days"].(int64); !ok || got != 7 {
		t.Fatalf("duration_days = %#v, want int64(7)", args["duration_days"])
	}
	if got, ok := args["start_price"].(float64); !ok || got != 250 {
		t.Fatalf("start_price = %#v, want float64(250)", args["start_price"])
	}
}

func TestValidateArgsRejectsUnknownArgument(t *testing.T) {
	t.Parallel()

	_, err := ValidateArgs(draftDef(), map[string]any{
		"product_id":   "p-1",
		"listing_type": "auction",
		"surprise":     "x",
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateArgsRejectsMissingRequired(t *testing.T) {
	t.Parallel()

	_, err := ValidateArgs(draftDef(), map[string]any{"product_id": "p-1"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateArgsRejectsEnumViolation(t *testing.T) {
	t.Parallel()

	_, err := ValidateArgs(draftDef(), map[string]any{
		"product_id":   "p-1",
		"listing_type": "raffle",
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateArgsRejectsFractionalInteger(t *testing.T) {
	t.Parallel()

	_, err := ValidateArgs(draftDef(), map[string]any{
		"product_id":    "p-1",
		"listing_type":  "auction",
		"duration_days": 7.5,
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateArgsNullRequiredArgument(t *testing.T) {
	t.Parallel()

	// Explicit null is stripped before the required check, so it counts as
	// absent.
	_, err := ValidateArgs(draftDef(), map[string]any{
		"product_id":   nil,
		"listing_type": "auction",
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateArgsNestedArrayOfObjects(t *testing.T) {
	t.Parallel()

	def := Definition{
		Name: "create_voucher",
		Params: map[string]*schema.ParameterInfo{
			"rows": {
				Type:     schema.Array,
				Required: true,
				ElemInfo: &schema.ParameterInfo{
					Type: schema.Object,
					SubParams: map[string]*schema.ParameterInfo{
						"account": {Type: schema.Integer, Required: true},
						"debit":   {Type: schema.Number},
					},
				},
			},
		},
		Handler: noopHandler,
	}

	args, err := ValidateArgs(def, map[string]any{
		"rows": []any{
			map[string]any{"account": float64(1930), "debit": float64(400)},
		},
	})
	if err != nil {
		t.Fatalf("ValidateArgs() error = %v", err)
	}
	rows := args["rows"].([]any)
	row := rows[0].(map[string]any)
	if got := row["account"].(int64); got != 1930 {
		t.Fatalf("account = %d, want 1930", got)
	}

	_, err = ValidateArgs(def, map[string]any{
		"rows": []any{map[string]any{"debit": float64(400)}},
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing sub-field error = %v, want ErrValidation", err)
	}
}

func TestStripNullsCollapsesEmptyMaps(t *testing.T) {
	t.Parallel()

	got := StripNulls(map[string]any{
		"keep": "x",
		"drop": nil,
		"nested": map[string]any{
			"inner": nil,
		},
	})
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("StripNulls() = %#v, want map", got)
	}
	if _, present := m["drop"]; present {
		t.Fatal("nil value survived StripNulls")
	}
	if _, present := m["nested"]; present {
		t.Fatal("empty nested map should collapse away")
	}
	if m["keep"] != "x" {
		t.Fatalf("keep = %v, want x", m["keep"])
	}
}
