package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
)

func TestRequestStateTransitions(t *testing.T) {
	st, err := newRequestState(request("r", true, "BTC"), time.Now())
	require.NoError(t, err)

	assert.Error(t, st.advance(PhaseAnalyzing), "skipping ingesting")
	require.NoError(t, st.advance(PhaseIngesting))
	require.NoError(t, st.advance(PhaseAnalyzing))
	require.NoError(t, st.advance(PhaseAggregating))
	require.NoError(t, st.advance(PhasePublishedSuccess))
	assert.True(t, st.phase.IsTerminal())

	assert.Error(t, st.advance(PhasePublishedError))
	assert.Error(t, st.advance(PhaseIngesting))
	assert.Equal(t, []Phase{PhaseReceived, PhaseIngesting, PhaseAnalyzing, PhaseAggregating, PhasePublishedSuccess}, st.history)
}

func TestRequestStateWriteOnce(t *testing.T) {
	st, err := newRequestState(request("r", true, "BTC"), time.Now())
	require.NoError(t, err)

	first := &models.TechnicalSignal{Token: "BTC", Trend: models.Bullish}
	st.setTechnical("BTC", first)
	st.setTechnical("BTC", &models.TechnicalSignal{Token: "BTC", Trend: models.Bearish})
	assert.Same(t, first, st.technical["BTC"])
}

func TestNewRequestStateRejectsIncompleteRequests(t *testing.T) {
	_, err := newRequestState(nil, time.Now())
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = newRequestState(request("", true, "BTC"), time.Now())
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = newRequestState(request("r", true), time.Now())
	assert.ErrorIs(t, err, models.ErrValidation)
}
