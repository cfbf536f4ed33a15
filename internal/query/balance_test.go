package query_test

import (
	"math/big"
	"testing"

	"PerpShare/internal/query"
	"PerpShare/internal/testutil"
)

func TestRenderWad(t *testing.T) {
	cases := []struct {
		name string
		in   *big.Int
		want string
	}{
		{"nil", nil, "0"},
		{"zero", new(big.Int), "0"},
		{"whole", testutil.Wad(7000), "7000"},
		{"half", testutil.WadFrac(1, 2), "0.5"},
		{"negative", new(big.Int).Neg(testutil.WadFrac(63, 2)), "-31.5"},
		{"one wei", big.NewInt(1), "0.000000000000000001"},
		{"repeating", testutil.WadFrac(2, 3), "0.666666666666666666"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := query.RenderWad(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
