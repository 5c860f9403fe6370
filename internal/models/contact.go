package models

import (
	"strings"

	"github.com/google/uuid"
)

// Identity is the rider identity supplied by the identity service.
// A nil *Identity means the request is from a guest.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Phone  string
	Roles  []string
}

// HasRole reports whether the identity carries role
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RiderKind tags the contact-info union
type RiderKind string

const (
	RiderRegistered RiderKind = "REGISTERED"
	RiderGuest      RiderKind = "GUEST"
)

// Rider is the tagged union {RegisteredRider, GuestRider}. Identity is set
// only for registered riders; Profile is always the submitted manifest data.
type Rider struct {
	Kind     RiderKind
	Identity *Identity
	Profile  RiderProfile
}

// NewRider builds the union from an optional identity
func NewRider(identity *Identity, profile RiderProfile) Rider {
	if identity == nil {
		return Rider{Kind: RiderGuest, Profile: profile}
	}
	return Rider{Kind: RiderRegistered, Identity: identity, Profile: profile}
}

// UserID returns the owning identity for the reservation (nil for guests)
func (r Rider) UserID() *uuid.UUID {
	if r.Kind != RiderRegistered || r.Identity == nil {
		return nil
	}
	id := r.Identity.UserID
	return &id
}

// ContactInfo is the resolved contact for a reservation
type ContactInfo struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone"`
	Kind  RiderKind `json:"rider_kind"`
}

// ResolveContact computes the contact once. Registered riders take their
// email from the identity record and fall back to the profile; phone always
// comes from the profile, then the identity.
func (r Rider) ResolveContact() ContactInfo {
	info := ContactInfo{
		Name:  strings.TrimSpace(r.Profile.FullName()),
		Email: r.Profile.Email,
		Phone: r.Profile.Phone,
		Kind:  r.Kind,
	}
	if r.Kind != RiderRegistered || r.Identity == nil {
		return info
	}
	if r.Identity.Email != "" {
		info.Email = r.Identity.Email
	}
	if info.Phone == "" {
		info.Phone = r.Identity.Phone
	}
	return info
}
