package content

import (
	"regexp"
	"strings"
)

var (
	slugRE     = regexp.MustCompile(`[^a-z0-9]+`)
	synonymSep = regexp.MustCompile(`[,/;]`)
)

// Slugify turns a scientific name into a species id: lower case ASCII
// letters and digits separated by single dashes.
func Slugify(name string) string {
	return strings.Trim(slugRE.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ParseNameLabel splits compound labels such as
// "Amanita excelsa (syn. Amanita spissa)" into the accepted name and its
// synonyms. Labels without parentheses are returned unchanged.
func ParseNameLabel(label string) (string, []string) {
	label = strings.TrimSpace(label)
	open := strings.Index(label, "(")
	closeIdx := strings.LastIndex(label, ")")
	if open == -1 || closeIdx == -1 || closeIdx < open {
		return label, nil
	}
	name := strings.TrimSpace(label[:open])
	inside := strings.ReplaceAll(label[open+1:closeIdx], "syn.", "")
	var synonyms []string
	for _, part := range synonymSep.Split(inside, -1) {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, name) {
			continue
		}
		synonyms = appendUnique(synonyms, part)
	}
	if name == "" && len(synonyms) > 0 {
		name, synonyms = synonyms[0], synonyms[1:]
	}
	if len(synonyms) == 0 {
		synonyms = nil
	}
	return name, synonyms
}
