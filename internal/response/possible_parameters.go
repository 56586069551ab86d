package response

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpecialChars    = regexp.MustCompile(`[\W]`)
	reNamePrefix      = regexp.MustCompile(`(?i)name=("|')?`)
	reNameAttr        = regexp.MustCompile(`(?i)name=("|')?[\w-]+`)
	reDeclPrefix      = regexp.MustCompile(`(?i)(var|let|const)\s+`)
	reDeclaration     = regexp.MustCompile(`(?i)(var|let|const)\s+[\w-]+`)
	reQuotedWord      = regexp.MustCompile(`("|')[a-zA-Z0-9]{3,20}("|')`)
	reObjectLiteralKey = regexp.MustCompile(`[{,]\s*[[:alpha:]]\w{2,25}:`)
)

// PossibleParameters mines candidate parameter names directly out of the
// body text: HTML "name=" attributes, JS var/let/const declarations,
// short quoted tokens, and object-literal keys. This mirrors the
// reference implementation's get_possible_parameters, which the original
// distillation of this spec dropped but which supplements wordlist-driven
// discovery with names taken from the page itself.
func (r *Record) PossibleParameters() []string {
	var found []string

	for _, m := range reNameAttr.FindAllString(r.Text, -1) {
		found = append(found, reNamePrefix.ReplaceAllString(m, ""))
	}
	for _, m := range reDeclaration.FindAllString(r.Text, -1) {
		found = append(found, reDeclPrefix.ReplaceAllString(m, ""))
	}
	for _, m := range reQuotedWord.FindAllString(r.Text, -1) {
		found = append(found, reSpecialChars.ReplaceAllString(m, ""))
	}
	for _, m := range reObjectLiteralKey.FindAllString(r.Text, -1) {
		found = append(found, reSpecialChars.ReplaceAllString(m, ""))
	}

	return dedupSorted(found)
}

// FormParameterNames extracts candidate names from HTML <input>/<select>/
// <textarea> elements using goquery, the same HTML parser the teacher
// codebase uses for its form extraction. It's a narrower, HTML-aware
// complement to PossibleParameters' regex sweep.
func (r *Record) FormParameterNames() []string {
	// The body text carries a prepended sorted-header block (see
	// prependHeaders); goquery only needs the HTML itself, so skip past
	// the blank line that separates them.
	html := r.Text
	if idx := strings.Index(html, "\n\n"); idx != -1 {
		html = html[idx+2:]
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var found []string
	doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok && name != "" {
			found = append(found, name)
		}
	})
	return dedupSorted(found)
}

func dedupSorted(in []string) []string {
	sortStrings(in)
	out := in[:0]
	var last string
	for i, v := range in {
		if i == 0 || v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}
