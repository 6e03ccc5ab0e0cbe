package calculator

import (
	"testing"

	"github.com/akarpov/bowltab/internal/models"
)

func TestBowlShares(t *testing.T) {
	tests := []struct {
		name         string
		cost         int64
		participants []string
		want         []int64
	}{
		{
			name:         "remainder goes to earliest participants",
			cost:         500,
			participants: []string{"u1", "u2", "u3"},
			want:         []int64{167, 167, 166},
		},
		{
			name:         "even split",
			cost:         500,
			participants: []string{"u1", "u2"},
			want:         []int64{250, 250},
		},
		{
			name:         "single participant takes it all",
			cost:         999,
			participants: []string{"u1"},
			want:         []int64{999},
		},
		{
			name:         "cost smaller than participant count",
			cost:         2,
			participants: []string{"u1", "u2", "u3"},
			want:         []int64{1, 1, 0},
		},
		{
			name:         "no participants yields no shares",
			cost:         500,
			participants: nil,
			want:         nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := BowlShares(tt.cost, tt.participants)
			if len(shares) != len(tt.want) {
				t.Fatalf("got %d shares, want %d", len(shares), len(tt.want))
			}
			for i, share := range shares {
				if share.UserID != tt.participants[i] {
					t.Errorf("share %d user = %s, want %s (insertion order)", i, share.UserID, tt.participants[i])
				}
				if share.Amount != tt.want[i] {
					t.Errorf("share %d amount = %d, want %d", i, share.Amount, tt.want[i])
				}
			}
		})
	}
}

func TestBowlSharesSumExactly(t *testing.T) {
	// The shares must sum to the cost for any cost and participant count:
	// no rounding drift, ever.
	participants := []string{"a", "b", "c", "d", "e", "f", "g"}
	for cost := int64(1); cost <= 1000; cost += 7 {
		for k := 1; k <= len(participants); k++ {
			var sum int64
			for _, share := range BowlShares(cost, participants[:k]) {
				sum += share.Amount
			}
			if sum != cost {
				t.Fatalf("cost=%d k=%d: shares sum to %d", cost, k, sum)
			}
		}
	}
}

func TestSessionTotals(t *testing.T) {
	calc := New("en")

	session := &models.Session{
		Bowls: []models.Bowl{
			{ID: "b1", Cost: 500, ParticipantIDs: []string{"u1", "u2"}},
			{ID: "b2", Cost: 300, ParticipantIDs: []string{"u2"}},
			{ID: "b3", Cost: 100}, // no participants, contributes nothing
		},
	}
	names := map[string]string{"u1": "Alice", "u2": "Bob"}

	rows := calc.SessionTotals(session, names)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// Bob: 250 + 300 = 550, Alice: 250; sorted by total descending.
	if rows[0].UserID != "u2" || rows[0].Total != 550 {
		t.Errorf("row 0 = %s/%d, want u2/550", rows[0].UserID, rows[0].Total)
	}
	if rows[1].UserID != "u1" || rows[1].Total != 250 {
		t.Errorf("row 1 = %s/%d, want u1/250", rows[1].UserID, rows[1].Total)
	}
}

func TestSessionTotalsTieBreaksByName(t *testing.T) {
	calc := New("en")

	session := &models.Session{
		Bowls: []models.Bowl{
			{ID: "b1", Cost: 400, ParticipantIDs: []string{"u2", "u1"}},
		},
	}
	names := map[string]string{"u1": "Anna", "u2": "Zoe"}

	rows := calc.SessionTotals(session, names)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].DisplayName != "Anna" || rows[1].DisplayName != "Zoe" {
		t.Errorf("tie order = [%s, %s], want [Anna, Zoe]", rows[0].DisplayName, rows[1].DisplayName)
	}
}

func TestSessionTotalsScenario(t *testing.T) {
	// Create session, add a 500 bowl, add u1 and u2: both owe 250.
	calc := New("en")

	session := &models.Session{
		Bowls: []models.Bowl{
			{ID: "b1", Cost: 500, ParticipantIDs: []string{"u1", "u2"}},
		},
	}
	rows := calc.SessionTotals(session, map[string]string{"u1": "A", "u2": "B"})

	for _, row := range rows {
		if row.Total != 250 {
			t.Errorf("%s total = %d, want 250", row.UserID, row.Total)
		}
	}
}
