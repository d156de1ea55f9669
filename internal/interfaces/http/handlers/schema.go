package handlers

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// Request schemas check shape and types only. Ranges are left to the engine
// so that every semantic rejection carries the engine's field and reason.

const definitions = `
"definitions": {
  "phase": {"type": "string", "minLength": 1},
  "phase_params": {
    "type": "object",
    "properties": {
      "probability": {"type": "number"},
      "cost": {"type": "number"},
      "duration": {"type": "number"}
    },
    "additionalProperties": false
  },
  "inputs": {
    "type": "object",
    "properties": {
      "launch_value": {"type": "number"},
      "order_of_entry": {"type": "integer"},
      "discount_rate": {"type": "number"},
      "include_rd_costs": {"type": "boolean"},
      "phases": {"type": "object", "additionalProperties": {"$ref": "#/definitions/phase_params"}}
    },
    "additionalProperties": false
  },
  "milestone": {
    "type": "object",
    "properties": {
      "label": {"type": "string"},
      "amount": {"type": "number"},
      "years": {"type": "number"}
    },
    "required": ["amount", "years"],
    "additionalProperties": false
  },
  "terms": {
    "type": "object",
    "properties": {
      "stage": {"$ref": "#/definitions/phase"},
      "upfront": {"type": "number"},
      "milestones": {"type": "array", "items": {"$ref": "#/definitions/milestone"}},
      "royalty_rate": {"type": "number"},
      "discount_rate": {"type": "number"}
    },
    "required": ["stage"],
    "additionalProperties": false
  },
  "launch_inputs": {
    "type": "object",
    "properties": {
      "market_value": {"type": "number"},
      "market_size": {"type": "integer"},
      "penetration_rate": {"type": "number"},
      "adoption_rate": {"type": "number"},
      "order_of_entry": {"type": "integer"},
      "elasticity": {"type": "number"}
    },
    "additionalProperties": false
  },
  "funnel": {
    "type": "object",
    "properties": {
      "treated_patients": {"type": "integer"},
      "diagnosed_patients": {"type": "integer"},
      "adoption_rate": {"type": "number"}
    },
    "required": ["treated_patients", "diagnosed_patients"],
    "additionalProperties": false
  }
}`

func objectSchema(body string) string {
	return `{"$schema": "http://json-schema.org/draft-07/schema#", ` + body + `, ` + definitions + `}`
}

var (
	npvSchema = mustSchema("npv", `"allOf": [{"$ref": "#/definitions/inputs"}]`)

	dealSchema = mustSchema("deal", `"type": "object",
  "properties": {
    "inputs": {"$ref": "#/definitions/inputs"},
    "terms": {"$ref": "#/definitions/terms"},
    "desired_share_pct": {"type": "number"}
  },
  "required": ["terms"],
  "additionalProperties": false`)

	strategySchema = mustSchema("strategy", `"type": "object",
  "properties": {
    "inputs": {"$ref": "#/definitions/inputs"},
    "stage": {"$ref": "#/definitions/phase"},
    "out_license_pct": {"type": "number"}
  },
  "required": ["stage"],
  "additionalProperties": false`)

	launchPriceSchema = mustSchema("launch_price", `"type": "object",
  "properties": {
    "inputs": {"$ref": "#/definitions/launch_inputs"},
    "funnel": {"$ref": "#/definitions/funnel"}
  },
  "additionalProperties": false`)

	sensitivitySchema = mustSchema("sensitivity", `"type": "object",
  "properties": {
    "inputs": {"$ref": "#/definitions/inputs"},
    "phase": {"$ref": "#/definitions/phase"},
    "shock": {"type": "number"}
  },
  "additionalProperties": false`)

	formPatchSchema = mustSchema("form_patch", `"type": "object",
  "additionalProperties": {"type": ["string", "number", "boolean"]}`)
)

type requestSchema struct {
	name   string
	schema *gojsonschema.Schema
}

func mustSchema(name, body string) *requestSchema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(objectSchema(body)))
	if err != nil {
		panic(fmt.Sprintf("handlers: invalid %s schema: %v", name, err))
	}
	return &requestSchema{name: name, schema: s}
}

// validate reports the first violation as a bad request naming the field.
func (s *requestSchema) validate(data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.New(errors.CodeInvalidParam, "malformed JSON body").WithCause(err)
	}
	if result.Valid() {
		return nil
	}
	// combinator errors ("must validate all the schemas") sit at the root
	// ahead of the violation that caused them
	first := result.Errors()[0]
	for _, desc := range result.Errors() {
		if desc.Field() != gojsonschema.STRING_CONTEXT_ROOT {
			first = desc
			break
		}
	}
	field := first.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		field = ""
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return errors.New(errors.CodeInvalidParam, first.Description()).
		WithField(field).
		WithDetail(strings.Join(msgs, "; "))
}
