package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/inkforge/gateway/src/executor"
	"github.com/inkforge/gateway/src/metrics"
	"github.com/inkforge/gateway/src/models"
	"github.com/inkforge/gateway/src/stream"
)

const sseDoneMarker = "data: [DONE]\n\n"

type GenerateHandler struct {
	exec     *executor.Executor
	emulator *stream.Emulator
	metrics  *metrics.Metrics
}

func NewGenerateHandler(exec *executor.Executor, emulator *stream.Emulator, m *metrics.Metrics) *GenerateHandler {
	return &GenerateHandler{
		exec:     exec,
		emulator: emulator,
		metrics:  m,
	}
}

// HandleGenerate executes one generation request. The response body has the
// same shape whether it was served fresh, from cache or as a fallback;
// origin is carried in informational fields and X-Inkforge-* headers only.
func (h *GenerateHandler) HandleGenerate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := "req_" + uuid.New().String()

	if req.Options.Stream {
		h.handleStream(c, requestID, &req)
		return
	}

	resp, err := h.exec.Execute(c.Request.Context(), req.Messages, req.Options)
	if err != nil {
		writeError(c, err)
		return
	}

	resp.RequestID = requestID
	setInfoHeaders(c, resp)
	c.JSON(http.StatusOK, resp)
}

// handleStream serves a streaming request over SSE. Live upstream deltas
// pass through as they arrive; a fallback substitution is replayed through
// the stream emulator so the caller sees a stream either way.
func (h *GenerateHandler) handleStream(c *gin.Context, requestID string, req *models.GenerateRequest) {
	started := false
	writeChunk := func(chunk *openai.ChatCompletionStreamResponse) error {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			started = true
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	resp, err := h.exec.ExecuteStream(c.Request.Context(), req.Messages, req.Options, func(model, delta string) error {
		return writeChunk(buildChunk(requestID, model, delta, openai.FinishReasonNull))
	})
	if err != nil {
		// Headers already sent means the stream just breaks off; otherwise
		// the caller gets a proper error status.
		if !started {
			writeError(c, err)
		}
		return
	}

	resp.RequestID = requestID

	if resp.Fallback {
		for ev := range h.emulator.ToStream(c.Request.Context(), resp) {
			if ev.Done {
				fmt.Fprint(c.Writer, sseDoneMarker)
				c.Writer.Flush()
				return
			}
			if err := writeChunk(ev.Chunk); err != nil {
				return
			}
		}
		return
	}

	// Terminal chunk, then the literal done marker.
	if err := writeChunk(buildChunk(requestID, resp.Model, "", openai.FinishReasonStop)); err != nil {
		return
	}
	fmt.Fprint(c.Writer, sseDoneMarker)
	c.Writer.Flush()
}

// HandleMetrics exposes the process-wide counters.
func (h *GenerateHandler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *GenerateHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func buildChunk(id, model, content string, finish openai.FinishReason) *openai.ChatCompletionStreamResponse {
	return &openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{
			{
				Delta:        openai.ChatCompletionStreamChoiceDelta{Content: content},
				FinishReason: finish,
			},
		},
	}
}

func setInfoHeaders(c *gin.Context, resp *models.GenerateResponse) {
	c.Header("X-Inkforge-Cache", string(resp.CacheStatus))
	c.Header("X-Inkforge-Model", resp.Model)
	c.Header("X-Inkforge-Response-Time", strconv.FormatInt(resp.ResponseTime.Milliseconds(), 10)+"ms")
	if resp.Fallback {
		c.Header("X-Inkforge-Fallback", "true")
	}
}

func writeError(c *gin.Context, err error) {
	var gerr *models.GenerationError
	if !errors.As(err, &gerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(gerr.StatusCode(), gin.H{
		"error":     gerr.Message,
		"type":      gerr.Type,
		"retryable": gerr.Retryable,
	})
}
