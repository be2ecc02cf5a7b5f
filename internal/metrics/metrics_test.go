package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	RecipientsRouted.WithLabelValues("metrics-test").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(RecipientsRouted.WithLabelValues("metrics-test")), 1.0)

	RecipientsSkipped.WithLabelValues(ReasonUnconfigured).Add(2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(RecipientsSkipped.WithLabelValues(ReasonUnconfigured)), 2.0)

	Deliveries.WithLabelValues("json", OutcomeSent).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(Deliveries.WithLabelValues("json", OutcomeSent)), 1.0)
}

func TestWriteTextfile(t *testing.T) {
	RecipientsSkipped.WithLabelValues(ReasonInvalidAddress).Inc()

	path := filepath.Join(t.TempDir(), "mailrise.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mailrise_recipients_skipped_total")
	assert.Contains(t, string(data), `reason="invalid_address"`)
}
