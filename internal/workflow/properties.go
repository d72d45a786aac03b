package workflow

import (
	"strings"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// ParseProperties parses "name1=value1,name2=value2" into variables.
// An empty string yields an empty list.
func ParseProperties(text string) ([]models.Variable, error) {
	if text == "" {
		return []models.Variable{}, nil
	}

	entries := strings.Split(text, ",")
	vars := make([]models.Variable, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, "=")
		if len(parts) != 2 {
			return nil, &ParseError{Input: text}
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, &ParseError{Input: text}
		}
		vars = append(vars, models.Variable{Name: name, Value: strings.TrimSpace(parts[1])})
	}
	return vars, nil
}
