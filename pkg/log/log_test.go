package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvents(base time.Time) []Event {
	return []Event{
		{
			Timestamp:  base,
			ExchangeID: "ex-1",
			Direction:  DirectionOut,
			Layer:      LayerProtocol,
			Category:   CategoryMessage,
			Address:    0x52,
			Module:     "BM",
			Command:    "BM:TEL? 0",
		},
		{
			Timestamp:  base.Add(10 * time.Millisecond),
			ExchangeID: "ex-1",
			Direction:  DirectionIn,
			Layer:      LayerProtocol,
			Category:   CategoryMessage,
			Address:    0x52,
			Module:     "BM",
			Frame:      NewFrameEvent([]byte{1, 2, 3, 4, 5, 6}, true),
		},
		{
			Timestamp:  base.Add(20 * time.Millisecond),
			ExchangeID: "ex-2",
			Direction:  DirectionOut,
			Layer:      LayerProtocol,
			Category:   CategoryRetry,
			Address:    0x53,
			Module:     "EPS",
			Command:    "EPS:TEL? 4",
			Retry:      &RetryEvent{Attempt: 1, Budget: 5, Delay: 150 * time.Millisecond},
		},
	}
}

func writeCapture(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.cbor")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, ev := range events {
		logger.Log(ev)
	}
	require.NoError(t, logger.Close())
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestFileLoggerReaderRoundTrip(t *testing.T) {
	events := testEvents(time.Now().UTC())
	path := writeCapture(t, events)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, len(events))
	for i, ev := range got {
		assert.Equal(t, events[i].ExchangeID, ev.ExchangeID)
		assert.Equal(t, events[i].Direction, ev.Direction)
		assert.Equal(t, events[i].Category, ev.Category)
		assert.Equal(t, events[i].Address, ev.Address)
		assert.Equal(t, events[i].Module, ev.Module)
		assert.Equal(t, events[i].Command, ev.Command)
		assert.True(t, events[i].Timestamp.Equal(ev.Timestamp))
	}

	// Typed payloads survive.
	require.NotNil(t, got[1].Frame)
	assert.Equal(t, 6, got[1].Frame.Size)
	assert.True(t, got[1].Frame.Ready)
	require.NotNil(t, got[2].Retry)
	assert.Equal(t, 150*time.Millisecond, got[2].Retry.Delay)
}

func TestFileLoggerAppends(t *testing.T) {
	events := testEvents(time.Now().UTC())
	path := writeCapture(t, events[:1])

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	logger.Log(events[1])
	require.NoError(t, logger.Close())

	// Logging after Close is ignored, not an error.
	logger.Log(events[2])

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, readAll(t, r), 2)
}

func TestFilteredReader(t *testing.T) {
	base := time.Now().UTC()
	path := writeCapture(t, testEvents(base))

	addr := uint16(0x52)
	r, err := NewFilteredReader(path, Filter{Address: &addr})
	require.NoError(t, err)
	defer r.Close()

	got := readAll(t, r)
	require.Len(t, got, 2)
	for _, ev := range got {
		assert.Equal(t, addr, ev.Address)
	}
}

func TestFilterCriteria(t *testing.T) {
	base := time.Now().UTC()
	events := testEvents(base)

	retry := CategoryRetry
	out := DirectionOut
	start := base.Add(15 * time.Millisecond)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"exchange", Filter{ExchangeID: "ex-1"}, 2},
		{"module", Filter{Module: "EPS"}, 1},
		{"category", Filter{Category: &retry}, 1},
		{"direction", Filter{Direction: &out}, 2},
		{"time window", Filter{TimeStart: &start}, 1},
		{"combined", Filter{ExchangeID: "ex-1", Direction: &out}, 1},
		{"no match", Filter{Module: "GPS"}, 0},
	}

	path := writeCapture(t, events)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			require.NoError(t, err)
			defer r.Close()
			assert.Len(t, readAll(t, r), tt.want)
		})
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b recorder
	m := NewMultiLogger(&a, &b)

	ev := Event{ExchangeID: "x"}
	m.Log(ev)

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "x", a.events[0].ExchangeID)
}

func TestOrNoop(t *testing.T) {
	assert.NotNil(t, OrNoop(nil))
	var r recorder
	assert.Equal(t, &r, OrNoop(&r))
}

func TestFrameEventTruncation(t *testing.T) {
	big := make([]byte, MaxFrameDataSize+100)
	ev := NewFrameEvent(big, false)
	assert.Equal(t, len(big), ev.Size)
	assert.Len(t, ev.Data, MaxFrameDataSize)
	assert.True(t, ev.Truncated)

	small := NewFrameEvent([]byte{1}, true)
	assert.False(t, small.Truncated)
	assert.True(t, small.Ready)
}

// recorder collects events for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) Log(event Event) { r.events = append(r.events, event) }
