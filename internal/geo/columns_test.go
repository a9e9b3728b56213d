package geo_test

import (
	"testing"

	"github.com/agentic-research/mapmaker/internal/geo"
	"github.com/agentic-research/mapmaker/internal/geo/geotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumns(t *testing.T) {
	cols, err := geo.ParseColumns([]string{geo.NameColumn, " ADM0_A3 ", "", "$.properties.CONTINENT"})
	require.NoError(t, err)
	require.Len(t, cols, 3)

	rows := geo.Table(geotest.Countries(), cols)
	assert.Equal(t, [][]string{
		{"France", "FRA", "Europe"},
		{"Germany", "DEU", "Europe"},
		{"Spain", "ESP", "Europe"},
	}, rows)
}

func TestParseColumns_InvalidPath(t *testing.T) {
	_, err := geo.ParseColumns([]string{"$.properties['NAME"})
	assert.Error(t, err)
}

func TestLookup_Missing(t *testing.T) {
	cols, err := geo.ParseColumns([]string{"POP_EST"})
	require.NoError(t, err)
	assert.Equal(t, "", cols[0].Lookup(geotest.Countries().Features[0]))
}

func TestPropertyKeys(t *testing.T) {
	assert.Equal(t, []string{"ADM0_A3", "CONTINENT", "GU_A3", "NAME_LONG", "SU_A3"}, geo.PropertyKeys(geotest.Countries()))
	assert.Nil(t, geo.PropertyKeys(nil))
}
