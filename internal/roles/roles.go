// Package roles derives the admin flag for a signed-in user.
//
// Admin status is never part of the session payload. It is resolved from, in order:
//  1. a static allow-list of administrator emails (case-insensitive, trimmed);
//  2. the profiles table, where role == "admin";
//  3. the user's metadata roles, consulted only when the profiles lookup fails.
//
// An allow-listed email is an administrator even when its profile says otherwise.
package roles

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// AdminRole is the role value that grants admin access
const AdminRole = "admin"

// Subject is the minimal view of a user needed to resolve the admin flag
type Subject struct {
	ID    string
	Email string
	Roles []string // Metadata roles
}

// ProfileLookup finds the role stored in the profiles table for a user.
// found is false when the user has no profile row; err is set when the
// lookup itself failed (including a missing table).
type ProfileLookup interface {
	ProfileRole(ctx context.Context, userID string) (role string, found bool, err error)
}

// AllowList is a set of administrator email addresses
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an allow-list; blank entries are ignored
func NewAllowList(emails ...string) AllowList {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := normalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return AllowList{emails: set}
}

// Contains reports whether email is on the list
func (a AllowList) Contains(email string) bool {
	n := normalizeEmail(email)
	if n == "" {
		return false
	}
	_, ok := a.emails[n]
	return ok
}

// Len returns the number of distinct addresses
func (a AllowList) Len() int {
	return len(a.emails)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolver resolves the admin flag for a subject
type Resolver struct {
	allow    AllowList
	profiles ProfileLookup
	logger   zerolog.Logger
}

// NewResolver creates a resolver. profiles may be nil, in which case only the
// allow-list and metadata roles are consulted.
func NewResolver(allow AllowList, profiles ProfileLookup, logger zerolog.Logger) *Resolver {
	return &Resolver{
		allow:    allow,
		profiles: profiles,
		logger:   logger.With().Str("component", "roles").Logger(),
	}
}

// Source records which rule decided the admin flag
type Source string

const (
	SourceNone      Source = "none"
	SourceAllowList Source = "allow_list"
	SourceProfile   Source = "profile"
	SourceMetadata  Source = "metadata"
)

// Decision is the outcome of a resolution
type Decision struct {
	IsAdmin bool
	Source  Source
}

// IsAdmin resolves the admin flag. It never returns an error: every failure
// degrades to false.
func (r *Resolver) IsAdmin(ctx context.Context, subject Subject) bool {
	return r.Resolve(ctx, subject).IsAdmin
}

// Resolve resolves the admin flag and reports which rule decided it
func (r *Resolver) Resolve(ctx context.Context, subject Subject) Decision {
	if subject.ID == "" {
		return Decision{Source: SourceNone}
	}

	if r.allow.Contains(subject.Email) {
		r.logger.Debug().Str("user_id", subject.ID).Msg("Admin by allow-list")
		return Decision{IsAdmin: true, Source: SourceAllowList}
	}

	if r.profiles == nil {
		return r.fromMetadata(subject)
	}

	role, found, err := r.profiles.ProfileRole(ctx, subject.ID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", subject.ID).
			Msg("Profiles lookup failed, falling back to metadata roles")
		return r.fromMetadata(subject)
	}
	if !found {
		return Decision{Source: SourceProfile}
	}
	return Decision{IsAdmin: role == AdminRole, Source: SourceProfile}
}

func (r *Resolver) fromMetadata(subject Subject) Decision {
	return Decision{
		IsAdmin: slices.Contains(subject.Roles, AdminRole),
		Source:  SourceMetadata,
	}
}
