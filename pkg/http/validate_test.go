package http

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string   `json:"id" validate:"required,max=8"`
	Kind  string   `json:"kind" default:"quick" validate:"oneof=quick comprehensive"`
	Items []string `json:"items" validate:"min=1,dive,uppercase"`
}

func TestValidateStructReportsJSONNames(t *testing.T) {
	s := &sample{Items: []string{"btc"}}
	require.NoError(t, ApplyDefaults(s))
	assert.Equal(t, "quick", s.Kind)

	errs := ValidateStruct(context.Background(), s)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "id", errs[0].Field)
	assert.Equal(t, "ERR_UPPERCASE", errs[1].Code)
	assert.Equal(t, "items[0]", errs[1].Field)
}

func TestValidateStructPasses(t *testing.T) {
	s := &sample{ID: "abc", Kind: "comprehensive", Items: []string{"BTC"}}
	assert.Nil(t, ValidateStruct(context.Background(), s))
}

func TestOneOfParams(t *testing.T) {
	s := &sample{ID: "abc", Kind: "deep", Items: []string{"BTC"}}
	errs := ValidateStruct(context.Background(), s)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_ONEOF", errs[0].Code)
	assert.Equal(t, []string{"quick", "comprehensive"}, errs[0].Params["options"])
}
