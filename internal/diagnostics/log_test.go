package diagnostics

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAppendEvictsOldestPastCapacity(t *testing.T) {
	log := New(DefaultCapacity)

	for i := 0; i < DefaultCapacity+7; i++ {
		log.Append("test", fmt.Sprintf("event-%d", i), nil)
	}

	events := log.List()
	require.Len(t, events, DefaultCapacity)
	assert.Equal(t, "event-7", events[0].Message)
	assert.Equal(t, fmt.Sprintf("event-%d", DefaultCapacity+6), events[len(events)-1].Message)
}

func TestListReturnsSnapshot(t *testing.T) {
	log := New(3)
	log.Append("a", "first", map[string]any{"n": 1})

	snapshot := log.List()
	log.Append("a", "second", nil)
	snapshot[0].Message = "mutated"

	assert.Len(t, snapshot, 1)
	assert.Equal(t, "first", log.List()[0].Message)
}

func TestClear(t *testing.T) {
	log := New(5)
	log.Append("a", "one", nil)
	log.Append("a", "two", nil)

	log.Clear()

	assert.Equal(t, 0, log.Len())
	log.Append("a", "three", nil)
	assert.Equal(t, "three", log.List()[0].Message)
}

func TestNonPositiveCapacityUsesDefault(t *testing.T) {
	log := New(0)
	for i := 0; i < DefaultCapacity+1; i++ {
		log.Append("a", "x", nil)
	}
	assert.Equal(t, DefaultCapacity, log.Len())
}

func TestExportDocument(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 5, 0, time.UTC)
	log := New(5, WithClock(fixedClock(at)))
	log.Append("probe", "listing buckets", map[string]any{"required": 3})

	doc, err := log.Export()
	require.NoError(t, err)
	assert.Equal(t, "diagnostics-20261014T093005Z.json", doc.Filename)

	var decoded struct {
		ExportedAt time.Time `json:"exported_at"`
		Count      int       `json:"count"`
		Events     []Event   `json:"events"`
	}
	require.NoError(t, json.Unmarshal(doc.Body, &decoded))
	assert.Equal(t, 1, decoded.Count)
	assert.True(t, decoded.ExportedAt.Equal(at))
	require.Len(t, decoded.Events, 1)
	assert.Equal(t, "probe", decoded.Events[0].Context)
}

func TestExportFilenamesSort(t *testing.T) {
	earlier := ExportFilename(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	later := ExportFilename(time.Date(2026, 11, 2, 3, 4, 5, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestConcurrentAppend(t *testing.T) {
	log := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Append("worker", fmt.Sprint(i), nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, log.Len())
}
