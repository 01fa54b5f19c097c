package common

import (
	"context"
	"testing"

	"calbridge/internal/mcp/oauth"
)

func TestGetAccountFromArgs(t *testing.T) {
	authedCtx := oauth.ContextWithUser(context.Background(), &oauth.GoogleUserInfo{
		Email: "authed@example.com",
	}, nil)

	tests := []struct {
		name string
		ctx  context.Context
		args map[string]interface{}
		want string
	}{
		{
			name: "oauth user wins over explicit argument",
			ctx:  authedCtx,
			args: map[string]interface{}{"account": "other@example.com"},
			want: "authed@example.com",
		},
		{
			name: "oauth user without args",
			ctx:  authedCtx,
			args: map[string]interface{}{},
			want: "authed@example.com",
		},
		{
			name: "explicit account argument",
			ctx:  context.Background(),
			args: map[string]interface{}{"account": "work@example.com"},
			want: "work@example.com",
		},
		{
			name: "empty account argument falls back to default",
			ctx:  context.Background(),
			args: map[string]interface{}{"account": ""},
			want: "default",
		},
		{
			name: "non-string account argument falls back to default",
			ctx:  context.Background(),
			args: map[string]interface{}{"account": 42},
			want: "default",
		},
		{
			name: "no context and no args",
			ctx:  context.Background(),
			args: nil,
			want: "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetAccountFromArgs(tt.ctx, tt.args)
			if got != tt.want {
				t.Errorf("GetAccountFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetAccountFromArgs_UserWithoutEmail(t *testing.T) {
	// A context user without email must not shadow the explicit argument
	ctx := oauth.ContextWithUser(context.Background(), &oauth.GoogleUserInfo{Sub: "sub-only"}, nil)

	got := GetAccountFromArgs(ctx, map[string]interface{}{"account": "work@example.com"})
	if got != "work@example.com" {
		t.Errorf("GetAccountFromArgs() = %q, want work@example.com", got)
	}
}
