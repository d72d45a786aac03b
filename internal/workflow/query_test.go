package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listResource = "/zosmf/workflow/rest/1.0/workflows"

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		filters FilterSet
		want    string
	}{
		{
			name: "no filters",
			want: listResource,
		},
		{
			name:    "single filter",
			filters: FilterSet{Category: "Provisioning"},
			want:    listResource + "?category=Provisioning",
		},
		{
			name:    "owner and vendor",
			filters: FilterSet{Owner: "zosmfad", Vendor: "IBM"},
			want:    listResource + "?owner=zosmfad&vendor=IBM",
		},
		{
			name:    "name is encoded",
			filters: FilterSet{Name: "my wf*", System: "SY1"},
			want:    listResource + "?workflowName=my%20wf%2A&system=SY1",
		},
		{
			name: "all filters in input order",
			filters: FilterSet{
				Name: "wf", Category: "general", System: "SY1",
				StatusName: "complete", Owner: "IBMUSER", Vendor: "IBM",
			},
			want: listResource + "?workflowName=wf&category=general&system=SY1&owner=IBMUSER&vendor=IBM&statusName=complete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildQuery(listResource, tt.filters.Filters())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, strings.Count(got, "?"), 1)
		})
	}
}

func TestBuildQueryKeepsCallerOrder(t *testing.T) {
	got, err := BuildQuery("/r", []Filter{
		{Key: "vendor", Value: "IBM"},
		{Key: "empty"},
		{Key: "category", Value: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/r?vendor=IBM&category=c", got)
}

func TestBuildQueryArchivedFilters(t *testing.T) {
	got, err := BuildQuery("/a", FilterSet{Name: "wf", OrderBy: "asc", View: "user"}.ArchivedFilters())
	require.NoError(t, err)
	assert.Equal(t, "/a?workflowName=wf&orderBy=asc&view=user", got)
}

func TestBuildQueryRejectsForbiddenCharacters(t *testing.T) {
	for _, value := range []string{"a?b", "a&b", "?", "&"} {
		t.Run(value, func(t *testing.T) {
			got, err := BuildQuery(listResource, FilterSet{Owner: value}.Filters())
			assert.Empty(t, got)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, FilterOwner, verr.Field)
		})
	}
}
