// Package calculator computes each participant's exact integer share of bowl
// costs. All amounts are integers in the smallest currency unit; shares always
// sum exactly to the cost they divide.
package calculator

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/akarpov/bowltab/internal/models"
)

// Share is one participant's owed amount for a single bowl.
type Share struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

// ParticipantTotal is one participant's aggregated share across a session.
type ParticipantTotal struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Total       int64  `json:"total"`
}

// BowlShares splits an integer cost among the bowl's participants using
// stable largest-remainder allocation: everyone gets floor(cost/k), and the
// first cost mod k participants in insertion order get one extra unit. The
// returned shares are in insertion order and sum exactly to cost. A bowl
// with no participants yields no shares.
func BowlShares(cost int64, participantIDs []string) []Share {
	k := int64(len(participantIDs))
	if k == 0 {
		return nil
	}

	base := cost / k
	remainder := cost - base*k

	shares := make([]Share, len(participantIDs))
	for i, id := range participantIDs {
		amount := base
		if int64(i) < remainder {
			amount++
		}
		shares[i] = Share{UserID: id, Amount: amount}
	}
	return shares
}

// Calculator aggregates session totals with locale-aware name ordering.
type Calculator struct {
	collator *collate.Collator
}

// New creates a Calculator. locale is a BCP 47 tag ("ru", "en", ...); an
// unparseable tag falls back to the und collation.
func New(locale string) *Calculator {
	return &Calculator{collator: collate.New(language.Make(locale))}
}

// SessionTotals sums each participant's bowl shares across the whole session.
// names maps user ids to display names for the output rows. Rows are sorted
// by total descending, ties broken by display name ascending under the
// configured collation. Bowls without participants contribute nothing.
func (c *Calculator) SessionTotals(session *models.Session, names map[string]string) []ParticipantTotal {
	totals := make(map[string]int64)
	var order []string // first-seen order, keeps the sort deterministic

	for _, bowl := range session.Bowls {
		for _, share := range BowlShares(bowl.Cost, bowl.ParticipantIDs) {
			if _, seen := totals[share.UserID]; !seen {
				order = append(order, share.UserID)
			}
			totals[share.UserID] += share.Amount
		}
	}

	rows := make([]ParticipantTotal, 0, len(order))
	for _, userID := range order {
		rows = append(rows, ParticipantTotal{
			UserID:      userID,
			DisplayName: names[userID],
			Total:       totals[userID],
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return c.collator.CompareString(rows[i].DisplayName, rows[j].DisplayName) < 0
	})
	return rows
}
