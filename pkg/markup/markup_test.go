// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBalance_ClosesUnfinishedBold(t *testing.T) {
	res := Balance("Here is **an unfinished bold")
	assert.Equal(t, "Here is **an unfinished bold**", res.Text)
	assert.Equal(t, []string{"bold"}, res.Closed)
}

func TestBalance_AlreadyBalancedIsUnchanged(t *testing.T) {
	res := Balance("a **bold** and _italic_ and `code`")
	assert.Empty(t, res.Closed)
	assert.Equal(t, "a **bold** and _italic_ and `code`", res.Text)
}

func TestBalance_OrderIsFenceThenCodeThenBoldThenItalic(t *testing.T) {
	// Unterminated fence, inline code, bold, and italic all at once.
	res := Balance("```go\nfunc x() {\n`oops **bold _italic")
	assert.Equal(t, []string{"code-fence", "inline-code", "bold", "italic"}, res.Closed)
}

func TestBalance_EveryDelimiterClassEndsEven(t *testing.T) {
	cases := []string{
		"no markup here",
		"*one star",
		"**two stars** then *one more",
		"```\nfence without close",
		"mixed `code and **bold",
	}
	for _, c := range cases {
		res := Balance(c)
		for _, d := range delimiterOrder {
			count := 0
			s := res.Text
			for i := 0; i+len(d.token) <= len(s); i++ {
				if s[i:i+len(d.token)] == d.token {
					count++
					i += len(d.token) - 1
				}
			}
			assert.Equalf(t, 0, count%2, "delimiter %s has odd count in %q", d.name, res.Text)
		}
	}
}

func TestEscapeHTMLText(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", EscapeHTMLText("a <b> & c"))
}

func TestCodeBlock_AddsTrailingNewlineBeforeFence(t *testing.T) {
	out := CodeBlock("diff", "+added line")
	assert.Equal(t, "```diff\n+added line\n```", out)
}
