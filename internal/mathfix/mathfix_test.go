// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mathfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"replacement char", "before �� after", "before  after"},
		{"math token", "x @@MATH_3@@ y", "x  y"},
		{"eq token", "see %%EQ_12%% here", "see  here"},
		{"clean text untouched", "nothing to strip", "nothing to strip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripPlaceholders(tt.in))
		})
	}
}

func TestDropStrayDelimiters(t *testing.T) {
	assert.Equal(t, "a  b", dropStrayDelimiters("a $ b"))
	assert.Equal(t, "kept $x$ span", dropStrayDelimiters("kept $x$ span"))
}

func TestCloseUnterminatedSpans(t *testing.T) {
	got := closeUnterminatedSpans("energy $E=mc^2")
	assert.Equal(t, "energy $$E=mc^2$$", got)

	// Balanced lines are untouched.
	assert.Equal(t, "x $a$ y", closeUnterminatedSpans("x $a$ y"))

	// Overlong spans are left alone: the closer is genuinely missing.
	long := "$start of a very long run of text that goes on well past the plausible formula length bound"
	assert.Equal(t, long, closeUnterminatedSpans(long))
}

func TestPromoteBareCommands(t *testing.T) {
	got := promoteBareCommands("\\Delta U = Q - W")
	assert.Equal(t, "$$\\Delta U = Q - W$$", got)

	// Lines already carrying delimiters are not promoted.
	already := "$$\\Delta U = Q - W$$"
	assert.Equal(t, already, promoteBareCommands(already))

	// Prose lines are not promoted.
	prose := "the first law says U = Q - W in words"
	assert.Equal(t, prose, promoteBareCommands(prose))
}

func TestPromoteBareCommandsSkipsDelimitedBlocks(t *testing.T) {
	// A formula between delimiter-only lines is already wrapped.
	block := "$$\n\\Delta U = Q - W\n$$"
	assert.Equal(t, block, promoteBareCommands(block))

	// The same formula after the block closes is still promoted.
	mixed := "$$\n\\sum_i p_i = 1\n$$\n\\Delta U = Q - W"
	want := "$$\n\\sum_i p_i = 1\n$$\n$$\\Delta U = Q - W$$"
	assert.Equal(t, want, promoteBareCommands(mixed))
}

func TestNormalizeKeepsMultiLineDisplayBlock(t *testing.T) {
	in := "The first law:\n\n$$\n\\Delta U = Q - W\n$$\n\nin differential form."
	assert.Equal(t, in, Normalize(in))
}

func TestInlineToDisplay(t *testing.T) {
	assert.Equal(t, "see $$x+y$$ here", inlineToDisplay("see $x+y$ here"))
	// Already-wrapped spans must not be double-wrapped.
	assert.Equal(t, "see $$x+y$$ here", inlineToDisplay("see $$x+y$$ here"))
}

func TestTrimDelimiterWhitespace(t *testing.T) {
	assert.Equal(t, "$$x+y$$", trimDelimiterWhitespace("$$ x+y $$"))
	assert.Equal(t, "$$x+y$$", trimDelimiterWhitespace("$$x+y$$"))
}

func TestNormalizePipeline(t *testing.T) {
	in := "Intro � with stray $ delim.\n" +
		"Inline $E=mc^2$ here.\n" +
		"\\Delta U = Q - W\n" +
		"Spaced $$ a+b $$ span.\n"
	got := Normalize(in)

	assert.NotContains(t, got, "�")
	assert.Contains(t, got, "Inline $$E=mc^2$$ here.")
	assert.Contains(t, got, "$$\\Delta U = Q - W$$")
	assert.Contains(t, got, "$$a+b$$")
	assert.NotContains(t, got, "stray $ delim")
}

func TestNormalizeStableOnBalancedInput(t *testing.T) {
	// A document with a balanced display span passes through unchanged.
	in := "The relation $$E=mc^2$$ holds everywhere."
	assert.Equal(t, in, Normalize(in))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"mixed $a+b$ and bare $ and \\sum_i x_i = 1",
		"unterminated $E=mc^2",
		"Spaced $$ x $$ and inline $y$.",
		"$$\n\\Delta U = Q - W\n$$",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}
