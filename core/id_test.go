package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID_UnmarshalJSON(t *testing.T) {
	var got struct {
		Num  ID `json:"num"`
		Str  ID `json:"str"`
		Null ID `json:"null"`
	}
	err := json.Unmarshal([]byte(`{"num": 42, "str": "c1a2", "null": null}`), &got)
	assert.NoError(t, err)
	assert.Equal(t, ID("42"), got.Num)
	assert.Equal(t, ID("c1a2"), got.Str)
	assert.True(t, got.Null.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"num": true}`), &got))
}

func TestIsAuthPath(t *testing.T) {
	assert.True(t, IsAuthPath(PathLogin))
	assert.True(t, IsAuthPath(PathRegister))
	assert.True(t, IsAuthPath("/register/teacher"))
	assert.False(t, IsAuthPath("/registered"))
	assert.False(t, IsAuthPath(PathStudent))
}
