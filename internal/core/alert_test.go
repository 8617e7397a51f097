package core

import (
	"strings"
	"testing"
)

func TestEvaluateBudget(t *testing.T) {
	tests := []struct {
		name   string
		spent  int64
		budget int64
		want   AlertLevel
	}{
		{"well under", 5000, 10000, AlertNone},
		{"just under 90%", 8999, 10000, AlertNone},
		{"exactly 90%", 9000, 10000, AlertWarning},
		{"between 90% and 100%", 9500, 10000, AlertWarning},
		{"exactly at budget", 10000, 10000, AlertWarning},
		{"over budget", 10001, 10000, AlertDanger},
		{"worked example", 13000, 10000, AlertDanger},
		{"zero budget zero spend", 0, 0, AlertWarning},
		{"zero budget any spend", 1, 0, AlertDanger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateBudget(Money{Cents: tt.spent}, Money{Cents: tt.budget})
			if got != tt.want {
				t.Errorf("EvaluateBudget(%d, %d) = %q, want %q", tt.spent, tt.budget, got, tt.want)
			}
		})
	}
}

func TestAlertMessages(t *testing.T) {
	key := BudgetKey{UserID: 1, Category: "Food", Period: Period{Year: 2024, Month: 1}}

	danger := Alert{Level: AlertDanger, Key: key}
	if !danger.ShouldNotify() {
		t.Fatal("danger alert should notify")
	}
	if danger.Message() != "⚠️ Exceeded budget for Food!" {
		t.Fatalf("unexpected message %q", danger.Message())
	}
	if danger.EmailSubject() != "Budget Exceeded" || danger.EmailBody() != "Budget exceeded for Food" {
		t.Fatalf("unexpected email %q / %q", danger.EmailSubject(), danger.EmailBody())
	}

	warning := Alert{Level: AlertWarning, Key: key}
	if warning.ShouldNotify() {
		t.Fatal("warning alert should not notify")
	}
	if warning.Message() != "⚠️ 90% budget used for Food" {
		t.Fatalf("unexpected message %q", warning.Message())
	}

	long := Alert{Level: AlertDanger, Key: BudgetKey{Category: strings.Repeat("é", 5000)}}
	if got := []rune(long.Message()); len(got) > 100 {
		t.Fatalf("message for a long category has %d runes", len(got))
	}
	if !strings.HasSuffix(long.Message(), "…!") {
		t.Fatalf("truncated message %q should end with an ellipsis", long.Message())
	}
	if long.EmailBody() != "Budget exceeded for "+long.Key.Category {
		t.Fatal("email body should keep the full category")
	}

	if (Alert{}).Message() != "" {
		t.Fatal("no alert should have no message")
	}
}
