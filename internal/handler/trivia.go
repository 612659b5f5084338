package handler

import (
	"net/http"

	"github.com/google/uuid"

	"engage-rewards-service/internal/service"
)

// TriviaHandler serves the daily trivia challenge endpoints.
type TriviaHandler struct {
	trivia *service.TriviaService
}

// NewTriviaHandler creates a new TriviaHandler instance.
func NewTriviaHandler(trivia *service.TriviaService) *TriviaHandler {
	return &TriviaHandler{trivia: trivia}
}

// HandleIssueQuestion handles POST /trivia/question. Repeat calls on
// the same day return the already-issued question.
func (h *TriviaHandler) HandleIssueQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	view, err := h.trivia.IssueQuestion(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSubmitAnswer handles POST /trivia/answer.
func (h *TriviaHandler) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		QuestionID    uuid.UUID `json:"question_id"`
		SelectedIndex int       `json:"selected_index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "question_id is required")
		return
	}

	result, err := h.trivia.SubmitAnswer(r.Context(), userID, req.QuestionID, req.SelectedIndex)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCreateQuestion handles POST /trivia/questions/create.
// Moderators and admins only.
func (h *TriviaHandler) HandleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		Question     string   `json:"question"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
		Country      *string  `json:"country"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	question, err := h.trivia.CreateQuestion(r.Context(), actorID, req.Question, req.Options, req.CorrectIndex, req.Country)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

// HandleSetQuestionActive handles POST /trivia/questions/set-active.
func (h *TriviaHandler) HandleSetQuestionActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req struct {
		QuestionID uuid.UUID `json:"question_id"`
		Active     bool      `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "question_id is required")
		return
	}

	if err := h.trivia.SetQuestionActive(r.Context(), actorID, req.QuestionID, req.Active); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// HandleListQuestions handles GET /trivia/questions. Moderators and
// admins only; the response includes correct answers.
func (h *TriviaHandler) HandleListQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var country *string
	if c := r.URL.Query().Get("country"); c != "" {
		country = &c
	}
	limit, offset := pageParams(r, 50, 200)

	questions, err := h.trivia.ListQuestions(r.Context(), actorID, country, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}
