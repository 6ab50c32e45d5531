// Package presentation derives every display-facing value of an assessment
// result: the local risk bucket, percentages, feature labels and the
// per-model contributor lists. Everything here is pure.
package presentation

import "credisense/internal/models"

// TopContributors is how many contributors of each sign a model card shows.
const TopContributors = 3

type DisplayModel struct {
	Classification RiskClass `json:"classification"`
	ClassLabel     string    `json:"classLabel"`
	Tone           string    `json:"tone"`
	Icon           string    `json:"icon"`
	Gradient       string    `json:"gradient"`

	// ServerTier is risk_tier exactly as received.
	ServerTier string `json:"serverTier"`

	Probability         float64 `json:"probability"`
	ProbabilityText     string  `json:"probabilityText"`
	ProbabilityBarWidth float64 `json:"probabilityBarWidth"`
	Confidence          float64 `json:"confidence"`
	ConfidenceText      string  `json:"confidenceText"`
	ExplanationCard     string  `json:"explanationCard"`

	HasBreakdown bool        `json:"hasBreakdown"`
	ModelCards   []ModelCard `json:"modelCards"`

	HasMetaModel bool           `json:"hasMetaModel"`
	MetaModel    *MetaModelView `json:"metaModel,omitempty"`
}

type ModelCard struct {
	Name               string  `json:"name"`
	BaseValueText      string  `json:"baseValueText"`
	PredictionText     string  `json:"predictionText"`
	PredictionBarWidth float64 `json:"predictionBarWidth"`

	HasRiskIncreasing bool              `json:"hasRiskIncreasing"`
	RiskIncreasing    []ContributorView `json:"riskIncreasing"`
	HasRiskReducing   bool              `json:"hasRiskReducing"`
	RiskReducing      []ContributorView `json:"riskReducing"`
}

type ContributorView struct {
	Feature   string      `json:"feature"`
	Label     string      `json:"label"`
	Value     interface{} `json:"value"`
	ShapValue float64     `json:"shapValue"`
	ShapText  string      `json:"shapText"`
	// Increasing is set for entries of the risk-increasing list.
	Increasing bool `json:"increasing"`
}

type MetaModelView struct {
	Formula       string       `json:"formula"`
	Intercept     float64      `json:"intercept"`
	InterceptText string       `json:"interceptText"`
	Weights       []WeightView `json:"weights"`
}

type WeightView struct {
	Model    string  `json:"model"`
	Weight   float64 `json:"weight"`
	Text     string  `json:"text"`
	Positive bool    `json:"positive"`
}

// Present builds the DisplayModel. Probabilities are not clamped.
func Present(resp models.AssessmentResponse) DisplayModel {
	class := Classify(resp.DefaultProbability)

	dm := DisplayModel{
		Classification:      class,
		ClassLabel:          class.Label(),
		Tone:                class.Tone(),
		Icon:                class.Icon(),
		Gradient:            class.Gradient(),
		ServerTier:          resp.RiskTier,
		Probability:         resp.DefaultProbability,
		ProbabilityText:     FormatPercentage(resp.DefaultProbability),
		ProbabilityBarWidth: resp.DefaultProbability * 100,
		Confidence:          resp.ConfidenceScore,
		ConfidenceText:      FormatPercentage(resp.ConfidenceScore),
		ExplanationCard:     resp.ExplanationCard,
		ModelCards:          []ModelCard{},
	}

	explanation, ok := resp.StructuredExplanation.Get()
	if !ok {
		return dm
	}

	for _, bm := range explanation.BaseModels {
		dm.ModelCards = append(dm.ModelCards, presentModel(bm))
	}
	dm.HasBreakdown = len(dm.ModelCards) > 0

	if mm := explanation.MetaModel; mm != nil {
		dm.HasMetaModel = true
		dm.MetaModel = presentMetaModel(*mm)
	}
	return dm
}

func presentModel(bm models.BaseModel) ModelCard {
	card := ModelCard{
		Name:               bm.ModelName,
		BaseValueText:      FormatPercentage(bm.BaseValue),
		PredictionText:     FormatPercentage(bm.FinalPrediction),
		PredictionBarWidth: bm.FinalPrediction * 100,
		RiskIncreasing:     presentContributors(bm.PositiveContributors, true),
		RiskReducing:       presentContributors(bm.NegativeContributors, false),
	}
	card.HasRiskIncreasing = len(card.RiskIncreasing) > 0
	card.HasRiskReducing = len(card.RiskReducing) > 0
	return card
}

// presentContributors keeps the first TopContributors in input order.
func presentContributors(in []models.Contributor, increasing bool) []ContributorView {
	n := len(in)
	if n > TopContributors {
		n = TopContributors
	}
	out := make([]ContributorView, 0, n)
	for _, c := range in[:n] {
		out = append(out, ContributorView{
			Feature:    c.Feature,
			Label:      HumanizeFeatureName(c.Feature),
			Value:      c.Value,
			ShapValue:  c.ShapValue,
			ShapText:   FormatShap(c.ShapValue, increasing),
			Increasing: increasing,
		})
	}
	return out
}

func presentMetaModel(mm models.MetaModel) *MetaModelView {
	view := &MetaModelView{
		Formula:       mm.Formula,
		Intercept:     mm.Intercept,
		InterceptText: FormatWeight(mm.Intercept),
		Weights:       make([]WeightView, 0, len(mm.Coefficients)),
	}
	for _, c := range mm.Coefficients {
		view.Weights = append(view.Weights, WeightView{
			Model:    c.Model,
			Weight:   c.Weight,
			Text:     FormatWeight(c.Weight),
			Positive: c.Weight > 0,
		})
	}
	return view
}

// NotificationFor is the success toast for a completed assessment. Severity
// follows the local bucket: only Low is non-destructive.
func NotificationFor(resp models.AssessmentResponse) (title, description, severity string) {
	severity = models.SeverityDestructive
	if resp.DefaultProbability < LowUpperBound {
		severity = models.SeverityDefault
	}
	return "Assessment Complete", "Risk Level: " + resp.RiskTier, severity
}
