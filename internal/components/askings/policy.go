// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2026 askings-go Authors

package askings

import (
	"fmt"
	"strings"

	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
)

// ListingPolicy decides who may list the askings of a mentor or a user.
type ListingPolicy string

const (
	// ListingLegacy rejects a non-admin listing their own askings and allows
	// everything else. Deployed clients depend on this behavior.
	ListingLegacy ListingPolicy = "legacy"

	// ListingSubjectOrAdmin allows admins and the subject themselves.
	ListingSubjectOrAdmin ListingPolicy = "subject_or_admin"
)

// ParseListingPolicy maps config values; empty selects ListingLegacy.
func ParseListingPolicy(s string) (ListingPolicy, error) {
	switch ListingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ListingLegacy:
		return ListingLegacy, nil
	case ListingSubjectOrAdmin:
		return ListingSubjectOrAdmin, nil
	default:
		return "", fmt.Errorf("invalid listing_policy %q: must be one of legacy, subject_or_admin", s)
	}
}

// Allows reports whether caller may list the askings of subjectID.
func (p ListingPolicy) Allows(caller *identity.Caller, subjectID string) bool {
	if caller == nil {
		return false
	}
	self := caller.ID == subjectID
	if p == ListingSubjectOrAdmin {
		return caller.IsAdmin() || self
	}
	return caller.IsAdmin() || !self
}

// PatchMode decides which fields Update may change.
type PatchMode string

const (
	// PatchPermissive merges any known field, including the parties and dates.
	PatchPermissive PatchMode = "permissive"

	// PatchRestricted only accepts title, description and state.
	PatchRestricted PatchMode = "restricted"
)

// ParsePatchMode maps config values; empty selects PatchPermissive.
func ParsePatchMode(s string) (PatchMode, error) {
	switch PatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PatchPermissive:
		return PatchPermissive, nil
	case PatchRestricted:
		return PatchRestricted, nil
	default:
		return "", fmt.Errorf("invalid patch_mode %q: must be one of permissive, restricted", s)
	}
}

// CanTransition is true only for the asking's mentor. Admins get no exemption.
func CanTransition(caller *identity.Caller, a *Asking) bool {
	return caller != nil && caller.ID != "" && caller.ID == a.MentorID
}
