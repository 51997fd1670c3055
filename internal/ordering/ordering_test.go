package ordering

import (
	"errors"
	"testing"

	"taskboard/api/internal/util"
)

func TestValidate(t *testing.T) {
	c1 := util.NewID("col")
	c2 := util.NewID("col")
	c3 := util.NewID("col")
	c4 := util.NewID("col")

	cases := []struct {
		name     string
		current  []string
		proposed []string
		wantErr  error
	}{
		{name: "permutation accepted", current: []string{c1, c2, c3}, proposed: []string{c2, c1, c3}, wantErr: nil},
		{name: "identity accepted", current: []string{c1, c2}, proposed: []string{c1, c2}, wantErr: nil},
		{name: "both empty accepted", current: nil, proposed: nil, wantErr: nil},
		{name: "dropped id rejected", current: []string{c1, c2, c3}, proposed: []string{c1, c3}, wantErr: ErrReorderOnly},
		{name: "foreign id rejected", current: []string{c1, c2, c3}, proposed: []string{c1, c2, c3, c4}, wantErr: ErrReorderOnly},
		{name: "swapped for foreign rejected", current: []string{c1, c2}, proposed: []string{c1, c4}, wantErr: ErrReorderOnly},
		{name: "emptying non-empty rejected", current: []string{c1}, proposed: nil, wantErr: ErrReorderOnly},
		{name: "filling empty rejected", current: nil, proposed: []string{c1}, wantErr: ErrReorderOnly},
		{name: "malformed id rejected", current: []string{c1, c2}, proposed: []string{c1, "not-an-id"}, wantErr: ErrInvalidID},
		{name: "duplicate replacing distinct rejected", current: []string{c1, c2}, proposed: []string{c1, c1}, wantErr: ErrReorderOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.current, tc.proposed)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
