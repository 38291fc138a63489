package extract

import (
	"regexp"
	"strings"
)

var (
	brTags     = regexp.MustCompile(`(?i)<\s*(?:br|/p|/div|/tr|/li|/h[1-6])\s*/?\s*>`)
	anyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	styleBlock = regexp.MustCompile(`(?is)<(style|script)[^>]*>.*?</(?:style|script)>`)
	manySpaces = regexp.MustCompile(`[ \t]+`)
	manyBlank  = regexp.MustCompile(`\n{3,}`)
)

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&rsquo;", "'",
	"&ndash;", "-",
)

// StripHTML converts an HTML email body into plain text good enough for
// regex extraction: line-breaking tags become newlines, all other tags are
// removed, common entities are decoded and whitespace is collapsed.
func StripHTML(html string) string {
	s := styleBlock.ReplaceAllString(html, " ")
	s = brTags.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, " ")
	s = entities.Replace(s)
	s = manySpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = manyBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// searchText builds the text an extractor scans: subject + body + snippet,
// falling back to stripped HTML when the plain-text body is empty.
func searchText(subject, bodyText, bodyHTML, snippet string) string {
	body := bodyText
	if strings.TrimSpace(body) == "" && bodyHTML != "" {
		body = StripHTML(bodyHTML)
	}
	return subject + "\n" + body + "\n" + snippet
}
