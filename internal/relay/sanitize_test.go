package relay

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "no commands here", "no commands here"},
		{"bold symbol", `$\bm{v}$`, `$\boldsymbol{v}$`},
		{"blackboard one", `\mathbbm{1}_{A}`, `\mathbb{1}_{A}`},
		{"hfill", `a \hfill b`, `a \quad b`},
		{"bmod untouched", `a \bmod b`, `a \bmod b`},
		{"mathbb untouched", `\mathbb{R}`, `\mathbb{R}`},
		{"hfil prefix untouched", `\hfil`, `\hfil`},
		{"escaped backslash", `\\bm`, `\\bm`},
		{"several in one fragment", `\bm{a}+\bm{b}\hfill\mathbbm{E}`, `\boldsymbol{a}+\boldsymbol{b}\quad\mathbb{E}`},
		{"command at end", `x\bm`, `x\boldsymbol`},
		{"trailing backslash", `x\`, `x\`},
		{"control symbol", `\{\bm\}`, `\{\boldsymbol\}`},
		{"unicode preserved", `héllo \bm{ü}`, `héllo \boldsymbol{ü}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
