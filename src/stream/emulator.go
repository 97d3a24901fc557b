package stream

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/inkforge/gateway/src/models"
)

const (
	DefaultChunkSize = 20
	DefaultDelay     = 10 * time.Millisecond

	chunkObject = "chat.completion.chunk"
)

// Event is one element of an emulated stream. Done marks the literal
// end-of-stream event that follows the last content chunk.
type Event struct {
	Chunk *openai.ChatCompletionStreamResponse
	Done  bool
}

// Emulator replays an already-complete response as paced incremental
// chunks, so a cache-served or fallback response can masquerade as a live
// stream for callers that asked for one.
type Emulator struct {
	chunkSize int
	delay     time.Duration
}

func NewEmulator(chunkSize int, delay time.Duration) *Emulator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Emulator{chunkSize: chunkSize, delay: delay}
}

// ToStream slices the response content into consecutive chunks and emits
// each as a completion delta, pacing emission with the configured delay.
// The final slice carries the terminal finish reason; a Done event closes
// the sequence. Cancelling ctx stops production promptly and releases the
// pacing timer.
func (e *Emulator) ToStream(ctx context.Context, resp *models.GenerateResponse) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		runes := []rune(resp.Content)
		for i := 0; ; i += e.chunkSize {
			end := i + e.chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			last := end == len(runes)

			chunk := e.buildChunk(resp, string(runes[i:end]), last)
			select {
			case out <- Event{Chunk: chunk}:
			case <-ctx.Done():
				return
			}
			if last {
				break
			}
			if !e.pace(ctx) {
				return
			}
		}

		select {
		case out <- Event{Done: true}:
		case <-ctx.Done():
		}
	}()

	return out
}

func (e *Emulator) buildChunk(resp *models.GenerateResponse, content string, last bool) *openai.ChatCompletionStreamResponse {
	finish := openai.FinishReasonNull
	if last {
		finish = openai.FinishReasonStop
	}
	return &openai.ChatCompletionStreamResponse{
		ID:      resp.RequestID,
		Object:  chunkObject,
		Created: resp.Timestamp.Unix(),
		Model:   resp.Model,
		Choices: []openai.ChatCompletionStreamChoice{
			{
				Delta:        openai.ChatCompletionStreamChoiceDelta{Content: content},
				FinishReason: finish,
			},
		},
	}
}

// pace waits the inter-chunk delay, returning false if the consumer went
// away first.
func (e *Emulator) pace(ctx context.Context) bool {
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
