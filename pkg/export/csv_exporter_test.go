package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"registrationNumber", "name", "address"},
		Rows: []map[string]string{
			{"registrationNumber": "25E001", "name": "Asha Rao", "address": "Aundh, Pune"},
			{"registrationNumber": "25E002", "name": "Joel \"JJ\" Samuel"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "registrationNumber,name,address\n25E001,Asha Rao,\"Aundh, Pune\"\n25E002,\"Joel \"\"JJ\"\" Samuel\",\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
