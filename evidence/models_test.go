package evidence

import "testing"

func strPtr(s string) *string { return &s }

func TestAdmissible(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{
			name: "verified with no objections",
			item: Item{Verification: VerificationVerified},
			want: true,
		},
		{
			name: "pending is never admissible",
			item: Item{Verification: VerificationPending},
			want: false,
		},
		{
			name: "disputed is never admissible",
			item: Item{Verification: VerificationDisputed},
			want: false,
		},
		{
			name: "rejected is never admissible",
			item: Item{Verification: VerificationRejected},
			want: false,
		},
		{
			name: "sustained objection excludes the item",
			item: Item{
				Verification: VerificationVerified,
				Objections: []Objection{
					{RulingDecision: strPtr(RulingSustained)},
				},
			},
			want: false,
		},
		{
			name: "overruled objection does not exclude",
			item: Item{
				Verification: VerificationVerified,
				Objections: []Objection{
					{RulingDecision: strPtr(RulingOverruled)},
				},
			},
			want: true,
		},
		{
			name: "pending objection does not exclude",
			item: Item{
				Verification: VerificationVerified,
				Objections:   []Objection{{}},
			},
			want: true,
		},
		{
			name: "one sustained among overruled excludes",
			item: Item{
				Verification: VerificationVerified,
				Objections: []Objection{
					{RulingDecision: strPtr(RulingOverruled)},
					{RulingDecision: strPtr(RulingSustained)},
					{RulingDecision: strPtr(RulingOverruled)},
				},
			},
			want: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.Admissible(); got != tc.want {
				t.Fatalf("Admissible() = %v, want %v", got, tc.want)
			}
		})
	}
}
