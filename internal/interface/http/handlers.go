package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/medsenger/education-agent/internal/application/command"
	"github.com/medsenger/education-agent/internal/application/query"
	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/course"
	"github.com/medsenger/education-agent/internal/domain/enrollment"
	"github.com/medsenger/education-agent/internal/domain/shared"
	"github.com/medsenger/education-agent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH ENDPOINTS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth performs a full health check including dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if s.deps.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.deps.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			s.logger.Warn("health check failed", logger.Err(err))
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"uptime":    s.Uptime().String(),
		"timestamp": time.Now().UTC(),
	})
}

// handleReady reports readiness (dependencies reachable).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.handleHealth(w, r)
}

// handleLive reports liveness (process responding).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENT PROTOCOL WEBHOOKS
// ══════════════════════════════════════════════════════════════════════════════

// statusRequest is the body of the /status heartbeat.
type statusRequest struct {
	APIKey string `json:"api_key"`
}

// handleStatus answers the platform heartbeat with tracked contracts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decodeWebhookJSON(w, r, &req) {
		return
	}
	if !s.checkAPIKey(req.APIKey) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
		return
	}

	result, err := s.deps.AgentStatus.Handle(r.Context(), query.GetAgentStatusQuery{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// initRequest is the body of the /init webhook. The platform sends the
// selected courses as a comma-separated string inside params.
type initRequest struct {
	APIKey     string `json:"api_key"`
	ContractID int64  `json:"contract_id"`
	Params     struct {
		Courses string `json:"courses"`
	} `json:"params"`
}

// handleInit connects a contract to the agent.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if !s.decodeWebhookJSON(w, r, &req) {
		return
	}
	if !s.checkAPIKey(req.APIKey) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
		return
	}

	result, err := s.deps.InitializeContract.Handle(r.Context(), command.InitializeContractCommand{
		ContractID:    req.ContractID,
		CourseIDs:     parseCourseList(req.Params.Courses),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// orderRequest is the body of the /order webhook.
type orderRequest struct {
	APIKey     string `json:"api_key"`
	ContractID int64  `json:"contract_id"`
	Order      string `json:"order"`
}

// handleOrder applies a doctor's free-text directive.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !s.decodeWebhookJSON(w, r, &req) {
		return
	}
	if !s.checkAPIKey(req.APIKey) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
		return
	}

	result, err := s.deps.ProcessOrder.Handle(r.Context(), command.ProcessOrderCommand{
		ContractID:    req.ContractID,
		Order:         req.Order,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		// The platform retries orders for contracts it believes are
		// connected; 422 tells it the contract is not tracked here.
		if isNotFound(err) {
			writeJSONError(w, http.StatusUnprocessableEntity, "unknown_contract", "Contract is not tracked by this agent")
			return
		}
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// removeRequest is the body of the /remove webhook.
type removeRequest struct {
	APIKey     string `json:"api_key"`
	ContractID int64  `json:"contract_id"`
}

// handleRemove disconnects a contract from the agent.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if !s.decodeWebhookJSON(w, r, &req) {
		return
	}
	if !s.checkAPIKey(req.APIKey) {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
		return
	}

	result, err := s.deps.RemoveContract.Handle(r.Context(), command.RemoveContractCommand{
		ContractID:    req.ContractID,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PATIENT PAGES
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLesson returns the lesson payload for the tasks page.
// A completed lesson comes back with the passed marker and no form.
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	if !s.verifyArgs(w, r) {
		return
	}

	lessonID, ok := pathInt64(w, r, "lessonID")
	if !ok {
		return
	}
	contractID, ok := queryInt64(w, r, "contract_id")
	if !ok {
		return
	}

	result, err := s.deps.Lesson.Handle(r.Context(), query.GetLessonQuery{
		ContractID: contractID,
		LessonID:   lessonID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// submitLessonRequest is the JSON body of a submission.
type submitLessonRequest struct {
	Answers map[string]string `json:"answers"`
}

// handleSubmitLesson scores a submission. Repeat submissions return
// first=false and award nothing.
func (s *Server) handleSubmitLesson(w http.ResponseWriter, r *http.Request) {
	if !s.verifyArgs(w, r) {
		return
	}

	lessonID, ok := pathInt64(w, r, "lessonID")
	if !ok {
		return
	}
	contractID, ok := queryInt64(w, r, "contract_id")
	if !ok {
		return
	}

	answers, err := readAnswers(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Malformed submission body")
		return
	}

	result, err := s.deps.SubmitLesson.Handle(r.Context(), command.SubmitLessonCommand{
		ContractID:    contractID,
		LessonID:      lessonID,
		Answers:       answers,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetContractCourses serves the settings and courses pages:
// the catalog annotated with the contract's enrollments.
func (s *Server) handleGetContractCourses(w http.ResponseWriter, r *http.Request) {
	if !s.verifyArgs(w, r) {
		return
	}

	contractID, ok := queryInt64(w, r, "contract_id")
	if !ok {
		return
	}

	result, err := s.deps.ContractCourses.Handle(r.Context(), query.GetContractCoursesQuery{
		ContractID:   contractID,
		EnrolledOnly: r.URL.Query().Get("enrolled_only") == "true",
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// saveCoursesRequest is the JSON body of a settings change.
type saveCoursesRequest struct {
	CourseID   int64  `json:"course_id"`
	ActionType string `json:"action_type"`
}

// handleSaveContractCourses applies a single add/remove action and
// returns the refreshed course list, mirroring what the settings page
// renders after a change.
func (s *Server) handleSaveContractCourses(w http.ResponseWriter, r *http.Request) {
	if !s.verifyArgs(w, r) {
		return
	}

	contractID, ok := queryInt64(w, r, "contract_id")
	if !ok {
		return
	}

	req, err := readSaveCoursesRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Malformed settings body")
		return
	}

	if _, err := s.deps.SaveContractCourses.Handle(r.Context(), command.SaveContractCoursesCommand{
		ContractID:    contractID,
		Action:        command.CourseAction(req.ActionType),
		CourseID:      req.CourseID,
		CorrelationID: getRequestID(r.Context()),
	}); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.ContractCourses.Handle(r.Context(), query.GetContractCoursesQuery{
		ContractID: contractID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCTOR PREVIEW PAGES
// ══════════════════════════════════════════════════════════════════════════════

// authPreview resolves the per-contract doctor token from the query
// string. Returns nil after writing 401 when the token is unknown.
func (s *Server) authPreview(w http.ResponseWriter, r *http.Request) *contract.Contract {
	token := r.URL.Query().Get("agent_token")
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing agent token")
		return nil
	}

	c, err := s.deps.Contracts.GetByAgentToken(r.Context(), contract.AgentToken(token))
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid agent token")
		return nil
	}

	return c
}

// handlePreviewCourse returns the full course content, reference
// answers included, for the doctor's preview page.
func (s *Server) handlePreviewCourse(w http.ResponseWriter, r *http.Request) {
	if s.authPreview(w, r) == nil {
		return
	}

	courseID, ok := pathInt64(w, r, "courseID")
	if !ok {
		return
	}

	result, err := s.deps.CoursePreview.Handle(r.Context(), query.GetCoursePreviewQuery{
		CourseID: courseID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// forceSendRequest is the body of a preview force-send.
type forceSendRequest struct {
	LessonID int64 `json:"lesson_id"`
}

// handleForceSendLesson pushes a chosen lesson into the contract's
// chat. Questions are included only when the contract is enrolled in
// the lesson's course.
func (s *Server) handleForceSendLesson(w http.ResponseWriter, r *http.Request) {
	c := s.authPreview(w, r)
	if c == nil {
		return
	}

	if _, ok := pathInt64(w, r, "courseID"); !ok {
		return
	}

	req, err := readForceSendRequest(r)
	if err != nil || req.LessonID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Missing lesson_id")
		return
	}

	lesson, err := s.deps.Courses.GetLesson(r.Context(), course.LessonID(req.LessonID))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	enrolled, err := s.deps.Ledger.IsEnrolled(r.Context(), c.ID, lesson.CourseID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.deps.LessonSender.SendLesson(r.Context(), c.ID.Int64(), lesson, enrolled); err != nil {
		s.logger.Error("force send failed",
			logger.ContractID(c.ID.Int64()),
			logger.LessonID(req.LessonID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusBadGateway, "send_failed", "Failed to deliver the lesson")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": "sent"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PARSING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeWebhookJSON decodes a webhook body.
func (s *Server) decodeWebhookJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Malformed JSON body")
		return false
	}
	return true
}

// pathInt64 parses a positive int64 path segment.
func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Invalid "+name)
		return 0, false
	}
	return v, true
}

// queryInt64 parses a positive int64 query parameter.
func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || v <= 0 {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Invalid "+name)
		return 0, false
	}
	return v, true
}

// parseCourseList parses the comma-separated course list of the init
// webhook. Malformed entries are skipped.
func parseCourseList(raw string) []int64 {
	if raw == "" {
		return nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// readAnswers reads a submission from either a JSON body or a classic
// HTML form, whichever the page sent.
func readAnswers(r *http.Request) (map[string]string, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req submitLessonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return req.Answers, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	answers := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			answers[key] = values[0]
		}
	}
	return answers, nil
}

// readSaveCoursesRequest reads a settings change from JSON or form body.
func readSaveCoursesRequest(r *http.Request) (saveCoursesRequest, error) {
	var req saveCoursesRequest

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}

	courseID, err := strconv.ParseInt(r.PostForm.Get("course_id"), 10, 64)
	if err != nil {
		return req, err
	}

	req.CourseID = courseID
	req.ActionType = r.PostForm.Get("action_type")
	return req, nil
}

// readForceSendRequest reads a force-send request from JSON or form body.
func readForceSendRequest(r *http.Request) (forceSendRequest, error) {
	var req forceSendRequest

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}

	lessonID, err := strconv.ParseInt(r.PostForm.Get("lesson_id"), 10, 64)
	if err != nil {
		return req, err
	}

	req.LessonID = lessonID
	return req, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// isNotFound recognizes the not-found sentinels of every domain
// package alongside the shared error kind.
func isNotFound(err error) bool {
	return shared.IsNotFound(err) ||
		errors.Is(err, contract.ErrNotFound) ||
		errors.Is(err, course.ErrNotFound) ||
		errors.Is(err, course.ErrLessonNotFound) ||
		errors.Is(err, enrollment.ErrNotFound)
}

// writeDomainError maps application errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case shared.IsValidation(err) || strings.Contains(err.Error(), "validation failed"):
		writeJSONError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
