package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainFieldHelpers(t *testing.T) {
	assert.Equal(t, Field{Key: "contract_id", Value: int64(500)}, ContractID(500))
	assert.Equal(t, Field{Key: "lesson_id", Value: int64(10)}, LessonID(10))
}

func TestErrField(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: nil}, Err(nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("unknown"))
}
