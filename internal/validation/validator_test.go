package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/validation"
)

type ratingRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Score     int    `json:"score" validate:"min=1,max=5"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(ratingRequest{SubjectID: "book-1", Score: 4})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name       string
		req        ratingRequest
		wantErrMsg string
	}{
		{
			name:       "missing required field",
			req:        ratingRequest{SubjectID: "", Score: 3},
			wantErrMsg: "subject_id",
		},
		{
			name:       "score below minimum",
			req:        ratingRequest{SubjectID: "book-1", Score: 0},
			wantErrMsg: "score",
		},
		{
			name:       "score above maximum",
			req:        ratingRequest{SubjectID: "book-1", Score: 6},
			wantErrMsg: "score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			assert.Contains(t, err.Error(), tt.wantErrMsg)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(ratingRequest{SubjectID: "", Score: 3})
	require.Error(t, err)

	// Should use JSON tag name "subject_id", not struct field name "SubjectID"
	assert.Contains(t, err.Error(), "subject_id")
	assert.NotContains(t, err.Error(), "SubjectID")
}
