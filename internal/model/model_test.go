package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJoinTypeAcceptsLabelAndCode(t *testing.T) {
	for _, jt := range JoinTypes {
		got, err := ParseJoinType(string(jt))
		require.NoError(t, err)
		assert.Equal(t, jt, got)

		got, err = ParseJoinType(jt.Code())
		require.NoError(t, err)
		assert.Equal(t, jt, got)
	}
	_, err := ParseJoinType("남남남남")
	assert.Error(t, err)
}

func TestJoinTypeUnmarshalRejectsUnknown(t *testing.T) {
	var v struct {
		T JoinType `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"MMF"}`), &v))
	assert.Equal(t, JoinMMF, v.T)
	assert.Error(t, json.Unmarshal([]byte(`{"t":"XYZ"}`), &v))
}

func TestJoinStatusTransitions(t *testing.T) {
	assert.True(t, JoinPendingConfirm.CanTransition(JoinConfirming))
	assert.True(t, JoinPendingConfirm.CanTransition(JoinConfirmed))
	assert.True(t, JoinConfirmed.CanTransition(JoinRefundPending))
	assert.True(t, JoinRefundPending.CanTransition(JoinRefunded))

	assert.False(t, JoinRefunded.CanTransition(JoinPendingConfirm))
	assert.False(t, JoinConfirmed.CanTransition(JoinRefunded))
	assert.False(t, JoinConfirming.CanTransition(JoinConfirming))
}

func TestParseCourseTimeStatus(t *testing.T) {
	st, err := ParseCourseTimeStatus("타업체마감")
	require.NoError(t, err)
	assert.Equal(t, CourseTimeClosedByPeer, st)

	_, err = ParseCourseTimeStatus("closed")
	assert.Error(t, err)
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "01012345678", NormalizePhone("010-1234-5678"))
	assert.Equal(t, "010-1234-5678", FormatPhone("01012345678"))
	assert.Equal(t, "010-123-4567", FormatPhone("0101234567"))
	assert.Equal(t, "12-34", FormatPhone("12-34"))
}
