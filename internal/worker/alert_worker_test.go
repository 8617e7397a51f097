package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
)

type fakeSender struct {
	to, subject, body string
	sent              bool
	err               error
	calls             int
}

func (f *fakeSender) SendEmail(_ context.Context, to, subject, body string) (bool, error) {
	f.calls++
	f.to, f.subject, f.body = to, subject, body
	return f.sent, f.err
}

func alertMessage() *amqp.BudgetAlertMessage {
	return &amqp.BudgetAlertMessage{
		UserID: 1, Recipient: "a@x", Category: "Food", Year: 2024, Month: 1,
		SpentCents: 13000, BudgetCents: 10000,
	}
}

func TestAlertWorker_HandleBudgetAlert(t *testing.T) {
	tests := []struct {
		name        string
		sender      *fakeSender
		override    string
		msg         *amqp.BudgetAlertMessage
		wantErr     error
		wantTo      string
		wantAttempt bool
	}{
		{
			name:        "delivered",
			sender:      &fakeSender{sent: true},
			msg:         alertMessage(),
			wantTo:      "a@x",
			wantAttempt: true,
		},
		{
			name:        "override recipient",
			sender:      &fakeSender{sent: true},
			override:    "test@gmail.com",
			msg:         alertMessage(),
			wantTo:      "test@gmail.com",
			wantAttempt: true,
		},
		{
			name:        "unconfigured relay is acknowledged",
			sender:      &fakeSender{},
			msg:         alertMessage(),
			wantTo:      "a@x",
			wantAttempt: true,
		},
		{
			name:        "transport failure is retryable",
			sender:      &fakeSender{err: core.ErrTransport},
			msg:         alertMessage(),
			wantErr:     core.ErrTransport,
			wantTo:      "a@x",
			wantAttempt: true,
		},
		{
			name:        "permanent rejection is not retried",
			sender:      &fakeSender{err: fmt.Errorf("%w: send email to a@x: 550 no such user", core.ErrRejected)},
			msg:         alertMessage(),
			wantErr:     core.ErrRejected,
			wantTo:      "a@x",
			wantAttempt: true,
		},
		{
			name:   "missing recipient is dropped",
			sender: &fakeSender{sent: true},
			msg: func() *amqp.BudgetAlertMessage {
				m := alertMessage()
				m.Recipient = ""
				return m
			}(),
			wantErr: core.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewAlertWorker(tt.sender, tt.override)
			err := w.HandleBudgetAlert(context.Background(), tt.msg)

			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && tt.wantErr != core.ErrTransport && errors.Is(err, core.ErrTransport) {
				t.Fatalf("error %v must not be retryable", err)
			}
			if (tt.sender.calls > 0) != tt.wantAttempt {
				t.Fatalf("send attempted = %v, want %v", tt.sender.calls > 0, tt.wantAttempt)
			}
			if tt.wantAttempt {
				if tt.sender.to != tt.wantTo {
					t.Errorf("to = %q, want %q", tt.sender.to, tt.wantTo)
				}
				if tt.sender.subject != "Budget Exceeded" || tt.sender.body != "Budget exceeded for Food" {
					t.Errorf("unexpected email %q / %q", tt.sender.subject, tt.sender.body)
				}
			}
		})
	}
}
