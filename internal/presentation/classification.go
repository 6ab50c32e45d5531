package presentation

// RiskClass is the locally derived risk bucket. It is computed from
// default_probability only and is never reconciled with the server's
// risk_tier label.
type RiskClass string

const (
	RiskLow    RiskClass = "Low"
	RiskMedium RiskClass = "Medium"
	RiskHigh   RiskClass = "High"
)

const (
	LowUpperBound    = 0.30
	MediumUpperBound = 0.60
)

// Classify buckets a probability. Both boundaries belong to the upper tier.
func Classify(p float64) RiskClass {
	switch {
	case p < LowUpperBound:
		return RiskLow
	case p < MediumUpperBound:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Label is the human form used in headers and metrics.
func (c RiskClass) Label() string {
	return string(c) + " Risk"
}

// Tone is the colour family used by the view.
func (c RiskClass) Tone() string {
	switch c {
	case RiskLow:
		return "success"
	case RiskMedium:
		return "warning"
	default:
		return "danger"
	}
}

func (c RiskClass) Icon() string {
	switch c {
	case RiskLow:
		return "check-circle"
	case RiskMedium:
		return "alert-circle"
	default:
		return "x-circle"
	}
}

func (c RiskClass) Gradient() string {
	return "bg-gradient-" + c.Tone()
}
