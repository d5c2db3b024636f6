package categoryrule

import "testing"

func TestCategoryRule_Matches(t *testing.T) {
	tests := []struct {
		name        string
		rule        CategoryRule
		description string
		vendor      string
		txType      string
		want        bool
	}{
		{
			name:        "description match",
			rule:        CategoryRule{Keyword: "grocery", MatchField: MatchDescription, TransactionType: TypeBoth, Category: "Food"},
			description: "GROCERY OUTLET #42",
			vendor:      "",
			txType:      TypeExpense,
			want:        true,
		},
		{
			name:        "vendor match",
			rule:        CategoryRule{Keyword: "acme", MatchField: MatchVendor, TransactionType: TypeBoth, Category: "Supplies"},
			description: "invoice 123",
			vendor:      "ACME Corp",
			txType:      TypeExpense,
			want:        true,
		},
		{
			name:        "vendor rule ignores description",
			rule:        CategoryRule{Keyword: "acme", MatchField: MatchVendor, TransactionType: TypeBoth, Category: "Supplies"},
			description: "acme payment",
			vendor:      "Other Vendor",
			txType:      TypeExpense,
			want:        false,
		},
		{
			name:        "both field matches either",
			rule:        CategoryRule{Keyword: "tuition", MatchField: MatchBoth, TransactionType: TypeBoth, Category: "Tuition"},
			description: "monthly tuition payment",
			vendor:      "",
			txType:      TypeIncome,
			want:        true,
		},
		{
			name:        "transaction type mismatch",
			rule:        CategoryRule{Keyword: "tuition", MatchField: MatchBoth, TransactionType: TypeIncome, Category: "Tuition"},
			description: "tuition refund",
			vendor:      "",
			txType:      TypeExpense,
			want:        false,
		},
		{
			name:        "no keyword hit",
			rule:        CategoryRule{Keyword: "payroll", MatchField: MatchBoth, TransactionType: TypeBoth, Category: "Payroll"},
			description: "office rent",
			vendor:      "Landlord LLC",
			txType:      TypeExpense,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule.Matches(tt.description, tt.vendor, tt.txType)
			if got != tt.want {
				t.Errorf("Matches(%q, %q, %q) = %v, want %v", tt.description, tt.vendor, tt.txType, got, tt.want)
			}
		})
	}
}

func TestCreateParams_Validate(t *testing.T) {
	valid := CreateParams{
		UserID:          1,
		Keyword:         "grocery",
		MatchField:      MatchDescription,
		TransactionType: TypeExpense,
		Category:        "Food",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on valid params failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"empty keyword", func(p *CreateParams) { p.Keyword = "  " }},
		{"empty category", func(p *CreateParams) { p.Category = "" }},
		{"bad match field", func(p *CreateParams) { p.MatchField = "payee" }},
		{"bad transaction type", func(p *CreateParams) { p.TransactionType = "transfer" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}
