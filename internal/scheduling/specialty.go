package scheduling

import "strings"

// conditionToSpecialty maps patient-reported conditions from the pre-booking
// form to doctor specialties. "other" intentionally maps to empty, meaning
// any doctor qualifies.
var conditionToSpecialty = map[string]string{
	"heart":         "Cardiology",
	"general":       "General Practice",
	"neurological":  "Neurology",
	"orthopedic":    "Orthopedics",
	"skin":          "Dermatology",
	"pediatric":     "Pediatrics",
	"mental_health": "Psychiatry",
	"cancer":        "Oncology",
	"other":         "",
}

// SpecialtyForCondition resolves a condition keyword to a specialty filter.
// Unknown conditions are treated as the condition being a specialty name
// already, so callers can pass either form.
func SpecialtyForCondition(condition string) string {
	if condition == "" {
		return ""
	}
	if specialty, ok := conditionToSpecialty[strings.ToLower(condition)]; ok {
		return specialty
	}
	return condition
}
