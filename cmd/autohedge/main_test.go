package main

import "testing"

func TestShouldRouteToCtl(t *testing.T) {
	cases := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"-config", "config.yaml"}, false},
		{[]string{"-port", "9000"}, false},
		{[]string{"-backtest", "-bt-config", "bt.yaml"}, true},
		{[]string{"--scan"}, true},
		{[]string{"-history"}, true},
		{[]string{"-report=abc"}, true},
		{[]string{"-llm-analyze", "x.json"}, true},
		{[]string{"backtest"}, false},
	}
	for _, tc := range cases {
		if got := shouldRouteToCtl(tc.args); got != tc.want {
			t.Fatalf("shouldRouteToCtl(%v) = %v, want %v", tc.args, got, tc.want)
		}
	}
}
