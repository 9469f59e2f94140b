package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hacs-web/backend/pkg/gotrue"
)

const (
	// listPageSize は update パスでのユーザー検索の取得上限。
	// これを超える件数のプロジェクトでは対象が見つからないことがある
	// （ErrAccountNotFound で通知される既知の制限）。
	listPageSize = 1000

	// propagationWait は作成／更新からサインイン検証までの待ち時間。
	// Identity Provider 側の反映が非同期なため、即時の検証は失敗しやすい。
	propagationWait = 1 * time.Second

	verifyRetryWait = 1500 * time.Millisecond
	verifyMaxTries  = 3
)

// signupServiceImpl is the production implementation of SignupService.
type signupServiceImpl struct {
	idp gotrue.Client

	// 待ち時間はテストから差し替える
	initialWait time.Duration
	retryWait   time.Duration
	maxTries    uint
}

// NewSignupService creates a SignupService backed by the given identity provider.
func NewSignupService(idp gotrue.Client) SignupService {
	return &signupServiceImpl{
		idp:         idp,
		initialWait: propagationWait,
		retryWait:   verifyRetryWait,
		maxTries:    verifyMaxTries,
	}
}

// Repair runs the create-or-repair state machine:
//  1. try to create a confirmed user
//  2. on "already registered", locate the account by email (case-insensitive)
//     and overwrite password / confirmation / metadata, clearing any ban
//  3. verify by password sign-in, retrying over a short window
func (s *signupServiceImpl) Repair(ctx context.Context, email, password string) (*RepairResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	operation := "create"

	_, err := s.idp.CreateUser(ctx, gotrue.CreateUserParams{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: map[string]any{"repaired_at": now},
	})
	if err != nil {
		if !gotrue.IsAlreadyRegistered(err) {
			return nil, fmt.Errorf("create user: %w", err)
		}

		operation = "update"
		target, ferr := s.findByEmail(ctx, email)
		if ferr != nil {
			return nil, ferr
		}

		userMeta := mergeMetadata(target.UserMetadata, map[string]any{"repaired_at": now})
		appMeta := mergeMetadata(target.AppMetadata, map[string]any{
			"provider":  "email",
			"providers": []string{"email"},
		})
		_, uerr := s.idp.UpdateUser(ctx, target.ID, gotrue.UpdateUserParams{
			Password:     password,
			EmailConfirm: true,
			UserMetadata: userMeta,
			AppMetadata:  appMeta,
			BanDuration:  "none",
		})
		if uerr != nil {
			return nil, fmt.Errorf("update user: %w", uerr)
		}
	}

	session, verr := s.verifyLogin(ctx, email, password)
	if verr != nil {
		slog.Warn("repair verification failed within retry budget",
			"email", email, "operation", operation, "error", verr)
		return &RepairResult{Operation: operation, Verified: false}, nil
	}
	return &RepairResult{Session: session, Operation: operation, Verified: true}, nil
}

// findByEmail locates a user by case-insensitive email in the admin listing.
func (s *signupServiceImpl) findByEmail(ctx context.Context, email string) (*gotrue.User, error) {
	users, err := s.idp.ListUsers(ctx, 1, listPageSize)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, ErrAccountNotFound
}

// verifyLogin waits out identity-store propagation, then attempts password
// sign-in up to maxTries times with a constant delay, short-circuiting on the
// first success.
func (s *signupServiceImpl) verifyLogin(ctx context.Context, email, password string) (*gotrue.Session, error) {
	select {
	case <-time.After(s.initialWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return backoff.Retry(ctx, func() (*gotrue.Session, error) {
		return s.idp.SignInWithPassword(ctx, email, password)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryWait)),
		backoff.WithMaxTries(s.maxTries),
	)
}

// mergeMetadata overlays updates onto a copy of existing metadata.
func mergeMetadata(existing, updates map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
