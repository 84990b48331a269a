package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrInternal, "failed to save", cause)

	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "failed to save: disk full", err.Error())
}

func TestErrorIs_ThroughFmtWrap(t *testing.T) {
	sentinel := New(ErrNotFound, "model version not found")
	err := fmt.Errorf("%w: v1", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "validation", err: Validation("text is required"), want: ErrValidation},
		{name: "not found", err: NotFound("sample %s", "x"), want: ErrNotFound},
		{name: "permission", err: PermissionDenied("admin only"), want: ErrPermissionDenied},
		{name: "insufficient", err: InsufficientData("need 2"), want: ErrInsufficientData},
		{name: "no training data wrapping not found", err: Wrap(ErrNoTrainingData, "no training data", NotFound("dataset")), want: ErrNoTrainingData},
		{name: "evaluation failed", err: Wrap(ErrEvaluationFailed, "", errors.New("boom")), want: ErrEvaluationFailed},
		{name: "plain error", err: errors.New("boom"), want: ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageFallback(t *testing.T) {
	assert.Equal(t, "not found", (&Error{Kind: ErrNotFound}).Error())
	assert.Equal(t, "evaluation failed: boom", Wrap(ErrEvaluationFailed, "", errors.New("boom")).Error())
}
