// internal/models/assessment.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AssessmentResponse is the body returned by the prediction service.
type AssessmentResponse struct {
	DefaultProbability    float64             `json:"default_probability"`
	RiskTier              string              `json:"risk_tier"`
	ConfidenceScore       float64             `json:"confidence_score"`
	ExplanationCard       string              `json:"explanation_card"`
	StructuredExplanation OptionalExplanation `json:"structured_explanation,omitzero"`
}

// OptionalExplanation is either present with data or absent. A JSON null and
// a missing key are both absent.
type OptionalExplanation struct {
	value   StructuredExplanation
	present bool
}

func SomeExplanation(e StructuredExplanation) OptionalExplanation {
	return OptionalExplanation{value: e, present: true}
}

func NoExplanation() OptionalExplanation {
	return OptionalExplanation{}
}

// Get returns the explanation and whether it is present.
func (o OptionalExplanation) Get() (StructuredExplanation, bool) {
	return o.value, o.present
}

func (o OptionalExplanation) IsPresent() bool {
	return o.present
}

// IsZero lets omitzero drop an absent explanation.
func (o OptionalExplanation) IsZero() bool {
	return !o.present
}

func (o OptionalExplanation) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalExplanation) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = OptionalExplanation{}
		return nil
	}
	var e StructuredExplanation
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	*o = SomeExplanation(e)
	return nil
}

type StructuredExplanation struct {
	MetaModel  *MetaModel  `json:"meta_model,omitempty"`
	BaseModels []BaseModel `json:"base_models"`
}

type MetaModel struct {
	Formula      string       `json:"formula"`
	Intercept    float64      `json:"intercept"`
	Coefficients Coefficients `json:"coefficients"`
}

// Coefficient is one model-name -> weight entry of the meta-model.
type Coefficient struct {
	Model  string
	Weight float64
}

// Coefficients keeps the object's key order as received.
type Coefficients []Coefficient

func (c Coefficients) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, coef := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(coef.Model)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(coef.Weight)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Coefficients) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("coefficients: expected object, got %v", tok)
	}

	out := Coefficients{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("coefficients: expected string key, got %v", keyTok)
		}
		var weight float64
		if err := dec.Decode(&weight); err != nil {
			return fmt.Errorf("coefficients[%s]: %w", key, err)
		}
		out = append(out, Coefficient{Model: key, Weight: weight})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

type BaseModel struct {
	ModelName            string        `json:"model_name"`
	BaseValue            float64       `json:"base_value"`
	FinalPrediction      float64       `json:"final_prediction"`
	PositiveContributors []Contributor `json:"positive_contributors"`
	NegativeContributors []Contributor `json:"negative_contributors"`
}

// Contributor is one feature attribution. Value is the raw feature value and
// may be a number or a string.
type Contributor struct {
	Feature   string      `json:"feature"`
	Value     interface{} `json:"value"`
	ShapValue float64     `json:"shap_value"`
}
