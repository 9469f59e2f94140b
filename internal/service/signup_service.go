package service

import (
	"context"
	"errors"

	"github.com/hacs-web/backend/pkg/gotrue"
)

// ErrAccountNotFound is returned by Repair when the identity provider reports
// the email as taken but the account cannot be located in the user listing
// (known edge case: listings are paginated).
var ErrAccountNotFound = errors.New("account exists but was not found in user list")

// RepairResult は Repair の結果。Verified が false の場合、アカウント自体は
// 作成／修復されている可能性があるが、サインイン確認が取れていない。
type RepairResult struct {
	Session   *gotrue.Session
	Operation string // "create" | "update"
	Verified  bool
}

// SignupService guarantees that an (email, password) pair is a working admin
// login, self-healing from half-created or stale accounts.
type SignupService interface {
	// Repair creates the account, or updates it in place when it already
	// exists, then verifies the credentials by signing in. Inputs are assumed
	// to be pre-validated by the caller.
	//
	// Concurrent Repair calls for the same email are not mutually excluded
	// and may race; the identity provider offers no atomic upsert-by-email.
	Repair(ctx context.Context, email, password string) (*RepairResult, error)
}
