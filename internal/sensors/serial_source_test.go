package sensors_test

import (
	"fmt"
	"testing"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_pipeline/internal/sensors"
)

// sentence appends the NMEA checksum to a body like "RLGYR,1,2,3,4".
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func TestGYRSentenceParse(t *testing.T) {
	raw := sentence("RLGYR,1234567,100,-200,32767")

	parsed, err := nmea.Parse(raw)
	require.NoError(t, err)

	g, ok := parsed.(sensors.GYR)
	require.True(t, ok, "expected a GYR sentence, got %T", parsed)

	assert.Equal(t, int64(1234567), g.TimestampUs)
	assert.Equal(t, 100.0, g.X)
	assert.Equal(t, -200.0, g.Y)
	assert.Equal(t, 32767.0, g.Z)
}

func TestGYRSentenceRejectsBadFields(t *testing.T) {
	raw := sentence("RLGYR,notanumber,1,2,3")

	_, err := nmea.Parse(raw)
	assert.Error(t, err)
}

func TestGYRSentenceRejectsBadChecksum(t *testing.T) {
	_, err := nmea.Parse("$RLGYR,1,2,3,4*00")
	assert.Error(t, err)
}
