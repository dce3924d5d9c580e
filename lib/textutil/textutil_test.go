package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchName(t *testing.T) {
	cases := []struct {
		name      string
		matchers  []string
		substring bool
		expect    bool
	}{
		{"Embracer Group AB", []string{"embracer group ab"}, false, true},
		{"Embracer Group AB", []string{"EmbracerGroupAB"}, false, true},
		{"Embracer Group AB", []string{"embracer"}, false, false},
		{"Embracer Group AB", []string{"embracer"}, true, true},
		{"Starbreeze AB", []string{"embracer"}, true, false},
		{"Embracer Group AB", nil, true, false},
		{"Embracer Group AB", []string{""}, true, false},
	}

	for _, test := range cases {
		got := MatchName(test.name, test.matchers, test.substring)
		require.Equal(t, test.expect, got, "name=%q matchers=%v", test.name, test.matchers)
	}
}
