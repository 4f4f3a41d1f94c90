package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateWeatherCode(t *testing.T) {
	t.Run("clear sky day", func(t *testing.T) {
		v, err := TranslateWeatherCode(0, true)
		require.NoError(t, err)
		assert.Equal(t, "Ciel dégagé", v.Label)
		assert.Equal(t, "☀️", v.Icon)
	})

	t.Run("clear sky night", func(t *testing.T) {
		v, err := TranslateWeatherCode(0, false)
		require.NoError(t, err)
		assert.Equal(t, "Nuit claire", v.Label)
		assert.Equal(t, "🌙", v.Icon)
	})

	t.Run("thunderstorm keeps a moon cue at night", func(t *testing.T) {
		v, err := TranslateWeatherCode(95, false)
		require.NoError(t, err)
		assert.Equal(t, "Orage (nuit)", v.Label)
		assert.Contains(t, v.Icon, "🌙")
	})

	t.Run("same inputs always translate the same way", func(t *testing.T) {
		first, err := TranslateWeatherCode(61, true)
		require.NoError(t, err)
		second, err := TranslateWeatherCode(61, true)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := TranslateWeatherCode(42, true)
		var unknown UnknownWeatherCodeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, 42, unknown.Code)
	})
}

func TestKnownWeatherCodes(t *testing.T) {
	codes := KnownWeatherCodes()
	require.NotEmpty(t, codes)
	assert.IsIncreasing(t, codes)
	assert.Contains(t, codes, 0)
	assert.Contains(t, codes, 95)

	for _, code := range codes {
		day, err := TranslateWeatherCode(code, true)
		require.NoError(t, err)
		assert.NotEmpty(t, day.Label, "code %d day label", code)
		assert.NotEmpty(t, day.Icon, "code %d day icon", code)

		night, err := TranslateWeatherCode(code, false)
		require.NoError(t, err)
		assert.NotEmpty(t, night.Label, "code %d night label", code)
		assert.NotEmpty(t, night.Icon, "code %d night icon", code)
	}
}
