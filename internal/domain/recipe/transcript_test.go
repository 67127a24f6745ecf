package recipe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptOrdering(t *testing.T) {
	tr := NewTranscript()

	tr.AppendUser("first")
	tr.AppendAssistant("reply one")
	tr.AppendUser("second")
	tr.AppendAssistant("reply two")

	messages := tr.Messages()
	require.Len(t, messages, 4)
	assert.Equal(t, []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply one"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply two"},
	}, messages)
}

func TestTranscriptMessagesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("hello")

	snapshot := tr.Messages()
	tr.AppendAssistant("hi")

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptConcurrentAppend(t *testing.T) {
	tr := NewTranscript()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.AppendUser("msg")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Len())
}
