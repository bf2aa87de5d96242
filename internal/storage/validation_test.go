package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/ofxread/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test",
			paramName: "param",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "source",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       " \t\n",
			paramName: "digest",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEmptyString) {
				t.Errorf("validateString() error = %v, want %v", err, ErrEmptyString)
			}
		})
	}
}

func TestValidateAccounts(t *testing.T) {
	tests := []struct {
		name     string
		accounts []model.Account
		wantErr  bool
	}{
		{
			name:     "no accounts",
			accounts: []model.Account{},
			wantErr:  false,
		},
		{
			name:     "valid accounts",
			accounts: []model.Account{createTestAccount("1", 1), createTestAccount("2", 0)},
			wantErr:  false,
		},
		{
			name:     "second account without id",
			accounts: []model.Account{createTestAccount("1", 1), {Info: model.AccountInfo{AcctID: "  "}}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAccounts(tt.accounts)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAccounts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAccount) {
				t.Errorf("validateAccounts() error = %v, want %v", err, ErrInvalidAccount)
			}
		})
	}
}
