package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medsenger/education-agent/internal/domain/course"
)

func TestParse_Enroll(t *testing.T) {
	d := Parse("add_course_42")

	assert.Equal(t, KindEnroll, d.Kind)
	assert.Equal(t, course.ID(42), d.CourseID)
	assert.True(t, d.IsRecognized())
}

func TestParse_Unenroll(t *testing.T) {
	d := Parse("remove_course_7")

	assert.Equal(t, KindUnenroll, d.Kind)
	assert.Equal(t, course.ID(7), d.CourseID)
}

func TestParse_ToleratesQuotesAndPadding(t *testing.T) {
	cases := []string{
		`"add_course_42"`,
		"  add_course_42  ",
		"'add_course_42'",
		"order: add_course_42.",
	}

	for _, raw := range cases {
		d := Parse(raw)
		assert.Equal(t, KindEnroll, d.Kind, "input: %q", raw)
		assert.Equal(t, course.ID(42), d.CourseID, "input: %q", raw)
	}
}

func TestParse_NonIntegerID(t *testing.T) {
	d := Parse("add_course_abc")

	assert.Equal(t, KindUnrecognized, d.Kind)
	assert.False(t, d.IsRecognized())
}

func TestParse_Unrecognized(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"add_course_",
		"remove_course_",
		"course_42",
		"add_course_0",
		"add_course_-5",
	}

	for _, raw := range cases {
		d := Parse(raw)
		assert.Equal(t, KindUnrecognized, d.Kind, "input: %q", raw)
	}
}

func TestParse_TrailingGarbageAfterID(t *testing.T) {
	// Digits followed by letters are not a valid course reference.
	d := Parse("add_course_42abc")
	assert.Equal(t, KindUnrecognized, d.Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "enroll", KindEnroll.String())
	assert.Equal(t, "unenroll", KindUnenroll.String())
	assert.Equal(t, "unrecognized", KindUnrecognized.String())
}
