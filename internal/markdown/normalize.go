package markdown

import "strings"

var (
	tagReplacer = strings.NewReplacer(
		"<li>", "",
		"</li>", "",
		"<hr>", "---",
		"<hr/>", "---",
		"<hr />", "---",
		"<strong>", "**",
		"</strong>", "**",
		"<em>", "_",
		"</em>", "_",
	)
	// Entities are decoded after tags.
	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#039;", "'",
	)
)

// NormalizeRenderArtifacts turns the HTML a rich text editor leaves in a
// body back into markdown and decodes the common entities. Passes repeat
// until nothing changes, so the result is stable under another call.
func NormalizeRenderArtifacts(body string) string {
	for {
		next := entityReplacer.Replace(tagReplacer.Replace(body))
		if next == body {
			return next
		}
		body = next
	}
}
