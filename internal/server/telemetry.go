package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
)

// IngestTelemetry accepts a JSON array of telemetry messages. Individual
// messages that fail to decode or store are counted, not rejected.
func (s *Server) IngestTelemetry(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil || batch == nil {
		AbortWithError(c, newValidationError("body", "invalid_batch", "body must be a JSON array"))
		return
	}

	payloads := make([][]byte, 0, len(batch))
	for _, raw := range batch {
		payloads = append(payloads, raw)
	}

	result := s.processor.Process(c.Request.Context(), ingestion.SourceHTTP, payloads)
	c.JSON(http.StatusAccepted, result)
}
