package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigimeteo/meteo-etl/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func testBatch() domain.ExportBatch {
	observed := time.Date(2024, 5, 15, 10, 15, 0, 0, time.UTC)
	return domain.ExportBatch{
		LocationSlug: "paris-france",
		Endpoint:     domain.EndpointForecast,
		IngestedAt:   time.Date(2024, 5, 15, 10, 16, 2, 0, time.UTC),
		Current: &domain.CurrentConditions{
			LocationSlug: "paris-france",
			ObservedAt:   observed,
			Temperature:  17.3,
			WeatherCode:  2,
			IsDay:        true,
		},
		Hourly: []domain.HourlyRecord{
			{
				LocationSlug:  "paris-france",
				Timestamp:     time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
				Temperature:   16.8,
				Precipitation: 0,
				WindSpeed:     14,
				WeatherCode:   2,
				IsDay:         true,
				WindGusts:     ptr(31),
			},
			{
				LocationSlug:  "paris-france",
				Timestamp:     time.Date(2024, 5, 15, 11, 0, 0, 0, time.UTC),
				Temperature:   17.4,
				Precipitation: 0.1,
				WindSpeed:     15,
				WeatherCode:   3,
				IsDay:         true,
			},
		},
		Daily: []domain.DailyRecord{
			{
				LocationSlug:     "paris-france",
				Date:             time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
				TemperatureMin:   9.1,
				TemperatureMax:   18.4,
				PrecipitationSum: 1.2,
				WeatherCode:      61,
			},
		},
	}
}

func TestBatchMessages(t *testing.T) {
	msgs, err := batchMessages(testBatch())
	require.NoError(t, err)
	require.Len(t, msgs, 4, "current + two hourly + one daily")

	assert.Equal(t, []byte("paris-france|2024-05-15T10:15"), msgs[0].Key)
	assert.Equal(t, []byte("paris-france|2024-05-15T10:00"), msgs[1].Key)
	assert.Equal(t, []byte("paris-france|2024-05-15T11:00"), msgs[2].Key)
	assert.Equal(t, []byte("paris-france|2024-05-15"), msgs[3].Key)

	assert.Contains(t, string(msgs[0].Value), `"temperature":17.3`)
	assert.Contains(t, string(msgs[1].Value), `"wind_gusts":31`)
	assert.Contains(t, string(msgs[3].Value), `"temperature_max":18.4`)
}

func TestBatchMessages_Headers(t *testing.T) {
	msgs, err := batchMessages(testBatch())
	require.NoError(t, err)

	wantTypes := []string{"current", "hourly", "hourly", "daily"}
	for i, msg := range msgs {
		require.Len(t, msg.Headers, 2)
		assert.Equal(t, "record_type", msg.Headers[0].Key)
		assert.Equal(t, []byte(wantTypes[i]), msg.Headers[0].Value)
		assert.Equal(t, "ingested_at", msg.Headers[1].Key)
		assert.Equal(t, []byte("2024-05-15T10:16:02Z"), msg.Headers[1].Value)
	}
}

func TestBatchMessages_HistoricalOnly(t *testing.T) {
	batch := domain.ExportBatch{
		LocationSlug: "lille-france",
		Endpoint:     domain.EndpointArchive,
		IngestedAt:   time.Date(2024, 5, 15, 3, 0, 0, 0, time.UTC),
		Historical: []domain.DailyRecord{
			{
				LocationSlug:     "lille-france",
				Date:             time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
				TemperatureMin:   4.2,
				TemperatureMax:   12.9,
				PrecipitationSum: 0,
				WeatherCode:      1,
			},
		},
	}

	msgs, err := batchMessages(batch)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("lille-france|2024-04-02"), msgs[0].Key)
	assert.Equal(t, []byte("historical"), msgs[0].Headers[0].Value)
}

func TestBatchMessages_EmptyBatch(t *testing.T) {
	msgs, err := batchMessages(domain.ExportBatch{LocationSlug: "paris-france"})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
