// Package billing splits a group order's bill among its participants.
//
// The delivery fee is divided evenly across every participant with exact
// decimal division. No remainder is redistributed: each participant carries
// the same divided value, so the shares may not add back up to the fee.
package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one priced order line attributed to a participant
type Line struct {
	UserID    uuid.UUID
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns price × quantity
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Split is the computed bill of one order
type Split struct {
	DeliveryFee  decimal.Decimal
	Participants []uuid.UUID
	Share        decimal.Decimal

	members   map[uuid.UUID]struct{}
	subtotals map[uuid.UUID]decimal.Decimal
}

// Compute splits deliveryFee across the distinct users found in lines and payers.
// Participants keep first-appearance order, lines first.
func Compute(deliveryFee decimal.Decimal, lines []Line, payers []uuid.UUID) Split {
	s := Split{
		DeliveryFee: deliveryFee,
		Share:       decimal.Zero,
		members:     make(map[uuid.UUID]struct{}),
		subtotals:   make(map[uuid.UUID]decimal.Decimal),
	}

	for _, l := range lines {
		s.add(l.UserID)
		s.subtotals[l.UserID] = s.subtotals[l.UserID].Add(l.Total())
	}
	for _, u := range payers {
		s.add(u)
	}

	if n := len(s.Participants); n > 0 {
		s.Share = deliveryFee.Div(decimal.NewFromInt(int64(n)))
	}
	return s
}

func (s *Split) add(userID uuid.UUID) {
	if _, ok := s.members[userID]; ok {
		return
	}
	s.members[userID] = struct{}{}
	s.Participants = append(s.Participants, userID)
}

// ParticipantCount returns the number of distinct participants
func (s Split) ParticipantCount() int {
	return len(s.Participants)
}

// IsParticipant reports whether the user has an item or a payment in the order
func (s Split) IsParticipant(userID uuid.UUID) bool {
	_, ok := s.members[userID]
	return ok
}

// Subtotal returns Σ price × quantity over the user's lines
func (s Split) Subtotal(userID uuid.UUID) decimal.Decimal {
	return s.subtotals[userID]
}

// ShareFor returns the user's delivery-fee share, zero for non-participants
func (s Split) ShareFor(userID uuid.UUID) decimal.Decimal {
	if !s.IsParticipant(userID) {
		return decimal.Zero
	}
	return s.Share
}

// Total returns the user's subtotal plus delivery-fee share
func (s Split) Total(userID uuid.UUID) decimal.Decimal {
	return s.Subtotal(userID).Add(s.ShareFor(userID))
}

// ItemsTotal returns the sum of all participants' subtotals
func (s Split) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, sub := range s.subtotals {
		total = total.Add(sub)
	}
	return total
}

// GrandTotal returns the sum of every participant's total. It differs from
// ItemsTotal + DeliveryFee by the division remainder.
func (s Split) GrandTotal() decimal.Decimal {
	return s.ItemsTotal().Add(s.Share.Mul(decimal.NewFromInt(int64(len(s.Participants)))))
}
