package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"credisense/internal/applicant"
	"credisense/internal/models"
	"credisense/internal/orchestrator"
	"credisense/internal/presentation"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"checked": func(v string) bool { return v == "true" || v == "on" },
		"dict":    dict,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// dict builds a map from alternating keys and values for sub-templates.
func dict(kv ...interface{}) (map[string]interface{}, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict expects key/value pairs, got %d arguments", len(kv))
	}
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", kv[i])
		}
		m[key] = kv[i+1]
	}
	return m, nil
}

// pageData feeds the "page" template.
type pageData struct {
	Phase         orchestrator.Phase
	Submitting    bool
	Values        url.Values
	Errors        map[string]string
	Display       *presentation.DisplayModel
	Notifications []models.Notification

	MinDate string
	MaxDate string

	Genders         []string
	MaritalStatuses []string
	Professions     []string
	HouseOwnerships []string
	DeviceTypes     []string
	LoanPurposes    []string
	EducationLevels []string
}

func newPageData(phase orchestrator.Phase, values url.Values) *pageData {
	return &pageData{
		Phase:           phase,
		Submitting:      phase == orchestrator.PhaseSubmitting,
		Values:          values,
		Errors:          map[string]string{},
		MinDate:         applicant.EarliestBirthDate.Format(models.DateLayout),
		MaxDate:         time.Now().Format(models.DateLayout),
		Genders:         models.Genders,
		MaritalStatuses: models.MaritalStatuses,
		Professions:     models.Professions,
		HouseOwnerships: models.HouseOwnerships,
		DeviceTypes:     models.DeviceTypes,
		LoanPurposes:    models.LoanPurposes,
		EducationLevels: models.EducationLevels,
	}
}

// formValues renders a record for the form. A fresh form leaves the amounts
// without a default blank.
func formValues(record models.ApplicantRecord, fresh bool) url.Values {
	values := applicant.ToForm(record)
	if fresh {
		values.Del(applicant.FieldIncome)
		values.Del(applicant.FieldLoanAmount)
	}
	return values
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (s *Server) render(c *gin.Context, status int, data *pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "page", data); err != nil {
		s.logger.Error("template rendering failed", map[string]interface{}{
			"error": err.Error(),
			"phase": data.Phase,
		})
		c.AbortWithStatusJSON(500, gin.H{"error": "Template rendering failed"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
