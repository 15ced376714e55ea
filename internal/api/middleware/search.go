package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"aiconsole/internal/models"
	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
)

// maxCapturedBody bounds how much of a request or response body is kept
// for the search log.
const maxCapturedBody = 1 << 20

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if room := maxCapturedBody - w.buf.Len(); room > 0 {
		if len(b) > room {
			w.buf.Write(b[:room])
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// RecordSearch wraps an AI handler and appends a search log entry once it
// has finished, whatever its outcome. The query is the "message" or "prompt"
// field of a JSON body, else the raw body; the response is the "response"
// field of the JSON reply, else its "error" field. Anonymous calls are not
// recorded.
func RecordSearch(audit *services.AuditService, searchType models.SearchType) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxCapturedBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), c.Request.Body))
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer

		// Recorded even when the handler panics.
		defer func() {
			identity := CurrentIdentity(c)
			if identity == nil {
				return
			}
			audit.RecordSearch(
				c.Request.Context(),
				identity.UserID(),
				searchType,
				extractQuery(reqBody),
				extractResponse(writer.buf.Bytes()),
				time.Since(start).Seconds(),
				clientInfo(c),
			)
		}()

		c.Next()
	}
}

func extractQuery(body []byte) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"message", "prompt"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return string(body)
}

func extractResponse(body []byte) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) != nil {
		return string(body)
	}
	for _, key := range []string{"response", "error"} {
		switch v := payload[key].(type) {
		case nil:
		case string:
			return v
		default:
			if raw, err := json.Marshal(v); err == nil {
				return string(raw)
			}
		}
	}
	return ""
}

func clientInfo(c *gin.Context) services.ClientInfo {
	return services.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
