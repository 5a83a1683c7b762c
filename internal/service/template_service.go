// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/leadflow-backend/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// LeadFields flattens a directory record into template placeholders.
// The lead may be nil (address attached straight from an import); the
// email placeholder is always available.
func LeadFields(lead *model.Lead, email string) map[string]string {
	fields := map[string]string{
		"email":      email,
		"first_name": "",
		"last_name":  "",
		"company":    "",
	}
	if lead != nil {
		fields["first_name"] = lead.FirstName
		fields["last_name"] = lead.LastName
		fields["company"] = lead.Company
	}
	return fields
}
