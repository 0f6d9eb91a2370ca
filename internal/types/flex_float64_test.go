package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat64(t *testing.T) {
	var f FlexFloat64

	require.NoError(t, json.Unmarshal([]byte(`40.758`), &f))
	assert.Equal(t, 40.758, f.Float64())

	require.NoError(t, json.Unmarshal([]byte(`"-73.9855"`), &f))
	assert.Equal(t, -73.9855, f.Float64())

	require.Error(t, json.Unmarshal([]byte(`"not-a-number"`), &f))
	require.Error(t, json.Unmarshal([]byte(`true`), &f))

	out, err := json.Marshal(FlexFloat64(12.5))
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(out))
}
