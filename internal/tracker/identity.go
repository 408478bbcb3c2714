package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// ErrNoIdentity reports that no fallback step produced a usable identity
var ErrNoIdentity = errors.New("no identifiable author")

// Resolver turns a story's assignee record into the identity string used
// to attribute commits
type Resolver struct {
	userMapping map[string]string
	logins      LoginSource
	logger      *zap.Logger

	loginOnce sync.Once
	login     string
}

// NewResolver creates an identity resolver. logins may be nil when no
// authenticated account is available to fall back on
func NewResolver(userMapping map[string]string, logins LoginSource, logger *zap.Logger) *Resolver {
	return &Resolver{
		userMapping: userMapping,
		logins:      logins,
		logger:      logger,
	}
}

type identityStrategy struct {
	source types.IdentitySource
	value  func(ctx context.Context) string
}

// Resolve selects the identity for one tracking run by trying each
// fallback strategy in order and returning the first non-empty value.
// Given the same assignee and override it always returns the same
// identity
func (r *Resolver) Resolve(ctx context.Context, assignee *types.Assignee, override string) (types.Identity, error) {
	for _, strategy := range r.strategies(assignee, override) {
		value := strategy.value(ctx)
		if value == "" {
			continue
		}
		identity := types.Identity{Value: value, Source: strategy.source}
		r.logger.Info("resolved identity",
			zap.String("identity", identity.Value),
			zap.String("source", string(identity.Source)),
		)
		return identity, nil
	}
	return types.Identity{}, ErrNoIdentity
}

func (r *Resolver) strategies(assignee *types.Assignee, override string) []identityStrategy {
	var email, displayName string
	if assignee != nil {
		email = strings.TrimSpace(assignee.Email)
		displayName = strings.TrimSpace(assignee.DisplayName)
	}

	return []identityStrategy{
		{types.IdentityOverride, func(context.Context) string { return strings.TrimSpace(override) }},
		{types.IdentityMapped, func(context.Context) string { return r.userMapping[email] }},
		{types.IdentityEmail, func(context.Context) string { return DeriveEmailIdentity(email) }},
		{types.IdentityAuthenticated, r.authenticatedLogin},
		{types.IdentityRawEmail, func(context.Context) string { return email }},
		{types.IdentityDisplayName, func(context.Context) string { return displayName }},
	}
}

// authenticatedLogin fetches the credential owner's username at most once
// per process and caches the outcome, including a failed fetch
func (r *Resolver) authenticatedLogin(ctx context.Context) string {
	if r.logins == nil {
		return ""
	}
	r.loginOnce.Do(func() {
		login, err := r.logins.AuthenticatedLogin(ctx)
		if err != nil {
			r.logger.Warn("failed to fetch authenticated login", zap.Error(err))
			return
		}
		r.login = login
	})
	return r.login
}

// DeriveEmailIdentity lowercases the local part of an email address and
// replaces dots with hyphens, so "Jane.Doe@co.com" becomes "jane-doe".
// Applying the substitution again does not change the result
func DeriveEmailIdentity(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(local), ".", "-")
}
