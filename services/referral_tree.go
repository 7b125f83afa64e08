package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/herbreserve_backend/models"
)

// ReferralTree is an in-memory snapshot of refer_id links, built once per run.
// Users are stored by id; direct referral counts come from a refer_id -> children index.
type ReferralTree struct {
	upline   map[primitive.ObjectID]primitive.ObjectID
	known    map[primitive.ObjectID]struct{}
	children map[primitive.ObjectID][]primitive.ObjectID
}

func NewReferralTree(links []models.ReferralLink) *ReferralTree {
	t := &ReferralTree{
		upline:   make(map[primitive.ObjectID]primitive.ObjectID, len(links)),
		known:    make(map[primitive.ObjectID]struct{}, len(links)),
		children: make(map[primitive.ObjectID][]primitive.ObjectID),
	}
	for _, l := range links {
		t.known[l.ID] = struct{}{}
		if l.ReferID == nil || l.ReferID.IsZero() || *l.ReferID == l.ID {
			continue
		}
		t.upline[l.ID] = *l.ReferID
		t.children[*l.ReferID] = append(t.children[*l.ReferID], l.ID)
	}
	return t
}

// Has reports whether the user existed when the snapshot was taken.
func (t *ReferralTree) Has(id primitive.ObjectID) bool {
	_, ok := t.known[id]
	return ok
}

// Upline returns the referrer of id, false at the root.
func (t *ReferralTree) Upline(id primitive.ObjectID) (primitive.ObjectID, bool) {
	up, ok := t.upline[id]
	return up, ok
}

// DirectReferrals counts users whose refer_id is id.
func (t *ReferralTree) DirectReferrals(id primitive.ObjectID) int {
	return len(t.children[id])
}

func (t *ReferralTree) Size() int {
	return len(t.known)
}

// Eligible is the level gate: level L pays only to an upline with at least L direct referrals.
func Eligible(directReferrals, level int) bool {
	return level >= 1 && level <= models.MaxCommissionLevels && directReferrals >= level
}
