package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"banksync/internal/domain/categoryrule"
)

type CategoryRuleHandler struct {
	rules categoryrule.Repository
}

func NewCategoryRuleHandler(rules categoryrule.Repository) *CategoryRuleHandler {
	return &CategoryRuleHandler{rules: rules}
}

// CreateCategoryRuleRequest is the request body for creating a rule
type CreateCategoryRuleRequest struct {
	Keyword         string `json:"keyword"`
	MatchField      string `json:"matchField"`
	TransactionType string `json:"transactionType"`
	Category        string `json:"category"`
}

// UpdateCategoryRuleRequest is the request body for updating a rule
type UpdateCategoryRuleRequest struct {
	Keyword         *string `json:"keyword,omitempty"`
	MatchField      *string `json:"matchField,omitempty"`
	TransactionType *string `json:"transactionType,omitempty"`
	Category        *string `json:"category,omitempty"`
}

// HandleCategoryRules handles GET/POST /api/category-rules
func (h *CategoryRuleHandler) HandleCategoryRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListRules(w, r)
	case http.MethodPost:
		h.handleCreateRule(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCategoryRuleByID handles GET/PATCH/DELETE /api/category-rules/{id}
func (h *CategoryRuleHandler) HandleCategoryRuleByID(w http.ResponseWriter, r *http.Request) {
	ruleID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid rule ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetRule(w, r, ruleID)
	case http.MethodPatch:
		h.handleUpdateRule(w, r, ruleID)
	case http.MethodDelete:
		h.handleDeleteRule(w, r, ruleID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CategoryRuleHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := categoryrule.CreateParams{
		UserID:          defaultUserID,
		Keyword:         req.Keyword,
		MatchField:      req.MatchField,
		TransactionType: req.TransactionType,
		Category:        req.Category,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule, err := h.rules.Create(r.Context(), params)
	if err != nil {
		log.Printf("Error creating category rule: %v", err)
		http.Error(w, "Failed to create rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

func (h *CategoryRuleHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListByUserID(r.Context(), defaultUserID)
	if err != nil {
		log.Printf("Error listing category rules: %v", err)
		http.Error(w, "Failed to list rules", http.StatusInternalServerError)
		return
	}

	if rules == nil {
		rules = []*categoryrule.CategoryRule{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

func (h *CategoryRuleHandler) handleGetRule(w http.ResponseWriter, r *http.Request, ruleID int64) {
	rule, err := h.rules.GetByID(r.Context(), ruleID)
	if err != nil {
		if err == categoryrule.ErrRuleNotFound {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting category rule %d: %v", ruleID, err)
		http.Error(w, "Failed to get rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

func (h *CategoryRuleHandler) handleUpdateRule(w http.ResponseWriter, r *http.Request, ruleID int64) {
	var req UpdateCategoryRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := categoryrule.UpdateParams{
		Keyword:         req.Keyword,
		MatchField:      req.MatchField,
		TransactionType: req.TransactionType,
		Category:        req.Category,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule, err := h.rules.Update(r.Context(), ruleID, params)
	if err != nil {
		if err == categoryrule.ErrRuleNotFound {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		log.Printf("Error updating category rule %d: %v", ruleID, err)
		http.Error(w, "Failed to update rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

func (h *CategoryRuleHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request, ruleID int64) {
	if err := h.rules.Delete(r.Context(), ruleID); err != nil {
		if err == categoryrule.ErrRuleNotFound {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		log.Printf("Error deleting category rule %d: %v", ruleID, err)
		http.Error(w, "Failed to delete rule", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
