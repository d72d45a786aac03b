package workflow

import (
	"net/url"
	"strings"
)

// Query parameter names understood by the listing endpoints.
const (
	FilterWorkflowName = "workflowName"
	FilterCategory     = "category"
	FilterSystem       = "system"
	FilterStatusName   = "statusName"
	FilterOwner        = "owner"
	FilterVendor       = "vendor"
	FilterOrderBy      = "orderBy"
	FilterView         = "view"
)

// Filter is one named query filter. Encode marks values that may carry
// search wildcards and must be URL-encoded.
type Filter struct {
	Key    string
	Value  string
	Encode bool
}

// FilterSet holds the optional filters for the active and archived
// registries. OrderBy and View only apply to the archived registry.
type FilterSet struct {
	Name       string
	Category   string
	System     string
	StatusName string
	Owner      string
	Vendor     string
	OrderBy    string
	View       string
}

// Filters returns the active-registry filters in request order.
func (f FilterSet) Filters() []Filter {
	return []Filter{
		{Key: FilterWorkflowName, Value: f.Name, Encode: true},
		{Key: FilterCategory, Value: f.Category},
		{Key: FilterSystem, Value: f.System},
		{Key: FilterOwner, Value: f.Owner},
		{Key: FilterVendor, Value: f.Vendor},
		{Key: FilterStatusName, Value: f.StatusName},
	}
}

// ArchivedFilters returns the archived-registry filters in request order.
func (f FilterSet) ArchivedFilters() []Filter {
	return append(f.Filters(),
		Filter{Key: FilterOrderBy, Value: f.OrderBy},
		Filter{Key: FilterView, Value: f.View},
	)
}

// BuildQuery appends the non-empty filters to resource as a query string,
// keeping the input order. Values containing '?' or '&' are rejected.
func BuildQuery(resource string, filters []Filter) (string, error) {
	var b strings.Builder
	b.WriteString(resource)

	sep := "?"
	for _, f := range filters {
		if f.Value == "" {
			continue
		}
		if strings.ContainsAny(f.Value, "?&") {
			return "", &ValidationError{
				Field:   f.Key,
				Message: "value must not contain '?' or '&'",
			}
		}
		value := f.Value
		if f.Encode {
			value = encodeComponent(value)
		}
		b.WriteString(sep)
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(value)
		sep = "&"
	}
	return b.String(), nil
}

// encodeComponent escapes v for a query value, spelling spaces as %20.
func encodeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
