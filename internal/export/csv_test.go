package export_test

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-dashboard/internal/export"
	"weather-dashboard/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{
		"ID", "JD", "Temperature", "Sky Temperature", "Box Temperature", "Pressure", "Humidity",
		"Illuminance", "Wind Speed", "Rain", "Is Raining", "CO2", "TVOC", "Note", "Merged",
		"Added On", "Last Modified",
	}, export.Labels(export.FullColumns))
	assert.Equal(t, []string{
		"ID", "JD", "Temperature", "Pressure", "Humidity", "Illuminance", "Wind Speed", "Rain",
		"Note", "Added On", "Last Modified",
	}, export.Labels(export.LegacyColumns))
}

func TestSanitizeNote(t *testing.T) {
	for in, want := range map[string]string{
		"plain":           "plain",
		"a\nb":            "a b",
		"a\r\nb":          "a b",
		"a,b":             "a b",
		"a,\r\n,b\rc":     "a   b c",
		"a,,b":            "a  b",
		"a\n\nb":          "a  b",
		"sensor, cleaned": "sensor  cleaned",
	} {
		got := export.SanitizeNote(in)
		assert.Equal(t, want, got, in)
		assert.False(t, strings.ContainsAny(got, "\r\n,"), in)
		assert.Equal(t, len([]rune(strings.ReplaceAll(in, "\r\n", "\n"))), len([]rune(got)), in)
	}
}

func TestWriteCSV_FullRow(t *testing.T) {
	rows := []model.SensorRow{{
		ID:             7,
		JD:             f64(2460311.5),
		Temperature:    f64(21.5),
		SkyTemperature: f64(-12),
		Pressure:       f64(1013.25),
		Humidity:       f64(45),
		Rain:           f64(0),
		IsRaining:      model.Flag{Valid: true, Value: false},
		CO2:            f64(410),
		Note:           "cleaned lens,\nrecalibrated",
		Merged:         model.Flag{Valid: true, Value: true},
		AddedOn:        "2024-01-01T00:00:00Z",
		LastModified:   "2024-01-01T01:00:00Z",
	}}
	b, err := export.BuildCSV(rows, export.FullColumns)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,JD,Temperature,Sky Temperature,Box Temperature,Pressure,Humidity,Illuminance,Wind Speed,Rain,Is Raining,CO2,TVOC,Note,Merged,Added On,Last Modified", lines[0])
	assert.Equal(t, "7,2460311.5,21.5,-12,,1013.25,45,,,0,false,410,,cleaned lens  recalibrated,true,2024-01-01T00:00:00Z,2024-01-01T01:00:00Z", lines[1])
}

func TestWriteCSV_NoteNeverBreaksRow(t *testing.T) {
	notes := []string{"a\nb", "x,y,z", "\r\n", ",", "multi\n\nline,,note\r"}
	rows := make([]model.SensorRow, len(notes))
	for i, n := range notes {
		rows[i] = model.SensorRow{ID: int64(i), Note: n}
	}
	b, err := export.BuildCSV(rows, export.LegacyColumns)
	require.NoError(t, err)

	recs, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, len(notes)+1)
	for _, rec := range recs[1:] {
		require.Len(t, rec, len(export.LegacyColumns))
		assert.False(t, strings.ContainsAny(rec[8], "\r\n,"))
	}
}
