package assistant

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// tokenEstimator sizes an outgoing context with tiktoken's cl100k_base
// table. Local models tokenize differently, but the estimate tracks real
// usage closely enough for capacity logging. The encoding loads lazily
// because the table may need a one-time download.
type tokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func (t *tokenEstimator) count(messages []schemas.ChatMessage) (int, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding("cl100k_base")
	})
	if t.err != nil {
		return 0, t.err
	}

	total := 0
	for _, msg := range messages {
		// Per-message wrapper overhead: <|start|>role\ncontent<|end|>.
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	return total + 3, nil
}
