package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuncListener_DeliversInOrder(t *testing.T) {
	var got []ProgressEventType
	listener := NewFuncListener(func(e ProgressEvent) {
		got = append(got, e.Type)
	})

	ch := make(chan ProgressEvent, 3)
	listener.StartListening(ch)
	ch <- ProgressEvent{Type: EventFileStarted}
	ch <- ProgressEvent{Type: EventSheetProgress, Percent: 30}
	ch <- ProgressEvent{Type: EventFileCompleted}
	close(ch)
	listener.StopListening()

	assert.Equal(t, []ProgressEventType{EventFileStarted, EventSheetProgress, EventFileCompleted}, got)
}

func TestNoopListener_Drains(t *testing.T) {
	listener := &NoopListener{}

	ch := make(chan ProgressEvent)
	listener.StartListening(ch)
	for i := 0; i < 5; i++ {
		ch <- ProgressEvent{Type: EventSheetProgress}
	}
	close(ch)
	listener.StopListening()
}
