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

// Package markup implements the outbound markup-safety net described in
// spec.md §4.2.4: rather than trying to escape the chat dialect's markup by
// transforming characters globally (its rules are context-sensitive), close
// any unbalanced trailing delimiter so a message built from untrusted
// session text is never rejected by the transport for malformed markup.
package markup

import (
	"strings"
)

// delimiter describes one markup delimiter class in closing order:
// code-fence, then inline-code, then bold, then italic, per §4.2.4.
type delimiter struct {
	name  string
	token string
}

var delimiterOrder = []delimiter{
	{name: "code-fence", token: "```"},
	{name: "inline-code", token: "`"},
	{name: "bold", token: "**"},
	{name: "italic", token: "_"},
}

// BalanceResult reports what Balance changed, for logging.
type BalanceResult struct {
	Text    string
	Closed  []string // delimiter names closed, in the order they were closed
}

// Balance counts occurrences of each delimiter class and appends a closing
// token for any class with an odd count, in the fixed order code-fence →
// inline-code → bold → italic. Code-fence tokens are counted and stripped
// first so a stray inline-code backtick inside an unterminated fence isn't
// double-counted against the inline-code class.
func Balance(text string) BalanceResult {
	working := text
	var closed []string

	for _, d := range delimiterOrder {
		count := strings.Count(working, d.token)
		if count%2 == 1 {
			working += d.token
			closed = append(closed, d.name)
		}
		if d.name == "code-fence" {
			// Remove fence tokens before counting inline-code so a fence's
			// triple backtick doesn't register as 1.5 inline-code pairs.
			working = strings.ReplaceAll(working, d.token, "")
		}
	}

	return BalanceResult{Text: closeInOriginal(text, closed), Closed: closed}
}

// closeInOriginal re-applies the closing tokens determined against the
// stripped working copy onto the original text, so the returned text is the
// original content plus trailing closers, never a mutated body.
func closeInOriginal(original string, closed []string) string {
	out := original
	for _, name := range closed {
		for _, d := range delimiterOrder {
			if d.name == name {
				out += d.token
			}
		}
	}
	return out
}

// EscapeHTMLText escapes the handful of characters that are structurally
// significant to the chat dialect's HTML-like parse mode when interpolating
// arbitrary session text (user prompts, assistant responses, CLI output)
// into a message. Escaping replaces characters; it intentionally does not
// try to interpret or reject markup the way Balance does for the legacy
// Markdown delimiters, since HTML escaping is reliable and context-free.
func EscapeHTMLText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

// CodeBlock wraps text in a fenced code block. text is written as given:
// no HTML escaping is applied inside the fence. Untrusted content (git porcelain, CLI stdout) is
// placed inside code blocks wherever feasible per §9 "Markup handling",
// since a code block's contents don't need markup balancing.
func CodeBlock(language, text string) string {
	var b strings.Builder
	b.WriteString("```")
	b.WriteString(language)
	b.WriteByte('\n')
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```")
	return b.String()
}
