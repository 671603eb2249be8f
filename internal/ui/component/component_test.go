package component

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rovshanmuradov/bridgetx/internal/logger"
)

func TestShortenAddress(t *testing.T) {
	assert.Equal(t, "abc", ShortenAddress("abc"))
	assert.Equal(t, "7xKX...AsU9", ShortenAddress("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU9"))
}

func TestStatusHeaderView(t *testing.T) {
	h := NewStatusHeader(HeaderInfo{Network: "mainnet", Commitment: "finalized", Variant: "v0"})
	h.SetWidth(80)

	view := h.View()
	assert.Contains(t, view, "mainnet")
	assert.Contains(t, view, "finalized")
	assert.Contains(t, view, "v0")
	assert.NotContains(t, view, "wallet", "empty fields are omitted")
}

func TestCompactLogViewerFilter(t *testing.T) {
	buf := logger.NewLogBuffer(8)
	now := time.Now()
	buf.Add(logger.LogEntry{Timestamp: now, Level: "debug", Message: "polling status"})
	buf.Add(logger.LogEntry{Timestamp: now, Level: "info", Message: "submitted"})
	buf.Add(logger.LogEntry{Timestamp: now, Level: "error", Message: "expired"})

	clv := NewCompactLogViewer(buf)
	assert.Equal(t, []string{"submitted", "expired"}, clv.Lines())

	clv.SetFilter(LogFilter{ShowError: true})
	assert.Equal(t, []string{"expired"}, clv.Lines())

	clv.SetVisible(false)
	assert.Empty(t, clv.View())
}

func TestCompactLogViewerNilBuffer(t *testing.T) {
	clv := NewCompactLogViewer(nil)
	assert.Nil(t, clv.Lines())
	assert.Contains(t, clv.View(), "No log buffer available")
}
