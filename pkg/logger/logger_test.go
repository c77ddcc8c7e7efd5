package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "json")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())

	_, err = New("info", "xml")
	assert.Error(t, err)

	_, err = New("loud", "console")
	assert.Error(t, err)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
