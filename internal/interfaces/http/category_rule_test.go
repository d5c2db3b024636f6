package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"banksync/internal/domain/categoryrule"
)

type MockCategoryRuleRepo struct {
	CreateFunc       func(ctx context.Context, params categoryrule.CreateParams) (*categoryrule.CategoryRule, error)
	GetByIDFunc      func(ctx context.Context, id int64) (*categoryrule.CategoryRule, error)
	ListByUserIDFunc func(ctx context.Context, userID int64) ([]*categoryrule.CategoryRule, error)
	UpdateFunc       func(ctx context.Context, id int64, params categoryrule.UpdateParams) (*categoryrule.CategoryRule, error)
	DeleteFunc       func(ctx context.Context, id int64) error
}

func (m *MockCategoryRuleRepo) Create(ctx context.Context, params categoryrule.CreateParams) (*categoryrule.CategoryRule, error) {
	return m.CreateFunc(ctx, params)
}

func (m *MockCategoryRuleRepo) GetByID(ctx context.Context, id int64) (*categoryrule.CategoryRule, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockCategoryRuleRepo) ListByUserID(ctx context.Context, userID int64) ([]*categoryrule.CategoryRule, error) {
	return m.ListByUserIDFunc(ctx, userID)
}

func (m *MockCategoryRuleRepo) Update(ctx context.Context, id int64, params categoryrule.UpdateParams) (*categoryrule.CategoryRule, error) {
	return m.UpdateFunc(ctx, id, params)
}

func (m *MockCategoryRuleRepo) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

func TestHandleCreateCategoryRule(t *testing.T) {
	repo := &MockCategoryRuleRepo{
		CreateFunc: func(ctx context.Context, params categoryrule.CreateParams) (*categoryrule.CategoryRule, error) {
			return &categoryrule.CategoryRule{
				ID:              1,
				Keyword:         params.Keyword,
				MatchField:      params.MatchField,
				TransactionType: params.TransactionType,
				Category:        params.Category,
			}, nil
		},
	}
	h := NewCategoryRuleHandler(repo)

	body := `{"keyword":"grocer","matchField":"both","transactionType":"expense","category":"Groceries"}`
	req := httptest.NewRequest(http.MethodPost, "/api/category-rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleCategoryRules(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateCategoryRule_Invalid(t *testing.T) {
	h := NewCategoryRuleHandler(&MockCategoryRuleRepo{})

	body := `{"keyword":"grocer","matchField":"payee","transactionType":"expense","category":"Groceries"}`
	req := httptest.NewRequest(http.MethodPost, "/api/category-rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleCategoryRules(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleCategoryRuleByID_NotFound(t *testing.T) {
	repo := &MockCategoryRuleRepo{
		GetByIDFunc: func(ctx context.Context, id int64) (*categoryrule.CategoryRule, error) {
			return nil, categoryrule.ErrRuleNotFound
		},
	}
	h := NewCategoryRuleHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/category-rules/42", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	h.HandleCategoryRuleByID(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCategoryRuleByID_InvalidID(t *testing.T) {
	h := NewCategoryRuleHandler(&MockCategoryRuleRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/category-rules/abc", nil)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	h.HandleCategoryRuleByID(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleDeleteCategoryRule(t *testing.T) {
	var deleted int64
	repo := &MockCategoryRuleRepo{
		DeleteFunc: func(ctx context.Context, id int64) error {
			deleted = id
			return nil
		},
	}
	h := NewCategoryRuleHandler(repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/category-rules/7", nil)
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()
	h.HandleCategoryRuleByID(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if deleted != 7 {
		t.Errorf("deleted = %d, want 7", deleted)
	}
}
