package loader

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag        = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// extractHTMLTitle returns the content of the <title> tag, if any.
func extractHTMLTitle(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(allTags.ReplaceAllString(m[1], "")))
}

// stripHTML converts an HTML page to plain text: non-content sections are
// dropped, block boundaries become newlines, remaining tags are removed and
// entities unescaped.
func stripHTML(content string) string {
	text := content
	text = htmlComments.ReplaceAllString(text, "")
	text = headTag.ReplaceAllString(text, "")
	text = scriptTag.ReplaceAllString(text, "")
	text = styleTag.ReplaceAllString(text, "")
	text = noscriptTag.ReplaceAllString(text, "")
	text = svgTag.ReplaceAllString(text, "")
	text = brTags.ReplaceAllString(text, "\n")
	text = blockElements.ReplaceAllString(text, "\n")
	text = allTags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = multiSpaces.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
