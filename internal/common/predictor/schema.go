package predictor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema is the contract of a 2xx /predict body. Probabilities are
// not range-checked.
const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["default_probability", "risk_tier", "confidence_score", "explanation_card"],
  "properties": {
    "default_probability": {"type": "number"},
    "risk_tier": {"type": "string"},
    "confidence_score": {"type": "number"},
    "explanation_card": {"type": "string"},
    "structured_explanation": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["base_models"],
          "properties": {
            "meta_model": {
              "oneOf": [
                {"type": "null"},
                {
                  "type": "object",
                  "required": ["formula", "intercept", "coefficients"],
                  "properties": {
                    "formula": {"type": "string"},
                    "intercept": {"type": "number"},
                    "coefficients": {
                      "type": "object",
                      "additionalProperties": {"type": "number"}
                    }
                  }
                }
              ]
            },
            "base_models": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["model_name", "base_value", "final_prediction", "positive_contributors", "negative_contributors"],
                "properties": {
                  "model_name": {"type": "string"},
                  "base_value": {"type": "number"},
                  "final_prediction": {"type": "number"},
                  "positive_contributors": {"$ref": "#/definitions/contributors"},
                  "negative_contributors": {"$ref": "#/definitions/contributors"}
                }
              }
            }
          }
        }
      ]
    }
  },
  "definitions": {
    "contributors": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["feature", "shap_value"],
        "properties": {
          "feature": {"type": "string"},
          "shap_value": {"type": "number"}
        }
      }
    }
  }
}`

var compiledSchema = mustCompile(responseSchema)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("predictor: invalid response schema: %v", err))
	}
	return s
}

// ValidateResponseBody checks a raw body against the response contract.
func ValidateResponseBody(body []byte) error {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("response failed schema validation: %s", strings.Join(errs, "; "))
	}
	return nil
}
