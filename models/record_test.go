package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPhone(t *testing.T) {
	parts, err := SplitPhone("010-1234-5678")
	assert.NoError(t, err)
	assert.Equal(t, [3]string{"010", "1234", "5678"}, parts)

	parts, err = SplitPhone("  010-9876-5432 ")
	assert.NoError(t, err)
	assert.Equal(t, "9876", parts[1])
}

func TestSplitPhoneRejectsMalformed(t *testing.T) {
	for _, input := range []string{"01012345678", "010-1234", "010--5678", ""} {
		_, err := SplitPhone(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestRecordGetTrims(t *testing.T) {
	rec := Record{"visitor_name": "  김철수  ", "empty": "   "}
	assert.Equal(t, "김철수", rec.Get("visitor_name"))
	assert.Equal(t, "", rec.Get("empty"))
	assert.True(t, rec.Has("visitor_name"))
	assert.False(t, rec.Has("empty"))
	assert.False(t, rec.Has("absent"))
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := Record{"visitor_name": "김철수"}
	clone := rec.Clone()
	clone["visitor_name"] = "이영희"
	assert.Equal(t, "김철수", rec.Get("visitor_name"))
}

func TestConfirmationOutcomeDefinitive(t *testing.T) {
	assert.True(t, ConfirmationOutcome{Availability: Available, Source: SourceNetwork}.Definitive())
	assert.True(t, ConfirmationOutcome{Availability: Unavailable, Source: SourceDOMPoll}.Definitive())
	assert.False(t, ConfirmationOutcome{Availability: Available, Source: SourceAssumed}.Definitive())
	assert.False(t, ConfirmationOutcome{Availability: Unknown}.Definitive())
}
