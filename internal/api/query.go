package api

import (
	"net/http"
	"strings"

	"github.com/nyashahama/nlsql-queryengine/internal/orchestrator"
)

// queryRequestBody is the wire shape of POST /query.
type queryRequestBody struct {
	Question   string `json:"question"`
	Database   string `json:"database"`
	ReturnType string `json:"return_type"` // "sql" | "result" | "both", default "result"
	Context    string `json:"context"`
}

// handleQuery runs one natural-language question through the orchestrator
// and returns its QueryResponse verbatim. The orchestrator never returns a
// Go error for a failed query, so the HTTP status is derived from
// resp.Success, not from a thrown error: 200 on success, 422 otherwise.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequestBody
	if !decode(w, r, &body) {
		return
	}

	question := strings.TrimSpace(body.Question)
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	returnType := orchestrator.ReturnResult
	switch body.ReturnType {
	case "", string(orchestrator.ReturnResult):
		returnType = orchestrator.ReturnResult
	case string(orchestrator.ReturnSQL):
		returnType = orchestrator.ReturnSQL
	case string(orchestrator.ReturnBoth):
		returnType = orchestrator.ReturnBoth
	default:
		respondErr(w, http.StatusBadRequest, "return_type must be one of sql, result, both")
		return
	}

	resp := s.orch.ExecuteQuery(r.Context(), orchestrator.QueryRequest{
		Question:   question,
		Database:   body.Database,
		ReturnType: returnType,
		Context:    body.Context,
	})

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusUnprocessableEntity
		s.logger.Warn("query failed", "error", resp.Error, logField(r))
	}
	respond(w, status, resp)
}
