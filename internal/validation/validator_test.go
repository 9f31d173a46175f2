package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
)

type modeRequest struct {
	Mode string `json:"mode" validate:"required,groupmode"`
}

type entryRequest struct {
	Group    string `json:"group" validate:"required,groupkey"`
	Variable string `json:"variable" validate:"required"`
}

type variable struct {
	Name string `json:"name" validate:"required"`
}

type variablesRequest struct {
	Variables []variable `json:"variables" validate:"dive"`
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
	fields, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	return fields
}

func TestValidate_GroupMode(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(modeRequest{Mode: "subject"}))
	assert.NoError(t, v.Validate(modeRequest{Mode: "subject-session"}))

	fields := details(t, v.Validate(modeRequest{Mode: "camera"}))
	assert.Contains(t, fields["mode"], "subject-session")
}

func TestValidate_GroupKey(t *testing.T) {
	v := New()

	tests := []struct {
		group string
		valid bool
	}{
		{"S1 / V1", true},
		{"S1 / V1 / extra", true},
		{"S1/V1", false},
		{" / V1", false},
		{"S1 / ", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			err := v.Validate(entryRequest{Group: tt.group, Variable: "Pain"})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Contains(t, details(t, err), "group")
			}
		})
	}
}

func TestValidate_NestedFieldPath(t *testing.T) {
	v := New()

	err := v.Validate(variablesRequest{Variables: []variable{{Name: "ok"}, {}}})

	fields := details(t, err)
	assert.Equal(t, "is required", fields["variables[1].name"])
}

func TestValidate_RequiredUsesJSONName(t *testing.T) {
	v := New()

	fields := details(t, v.Validate(entryRequest{Group: "S1 / V1"}))
	assert.Equal(t, map[string]string{"variable": "is required"}, fields)
}
