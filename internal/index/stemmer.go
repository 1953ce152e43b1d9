package index

import "strings"

// stem reduces word to a root form using the brain tools' simplified
// Porter-style suffix stripping: plural/participle stripping, then common
// suffix replacement, then a handful of trailing simplifications.
// Ported from original_source/tools/brain/brain_index.py's PorterStemmer.
func stem(word string) string {
	word = strings.ToLower(word)
	if len(word) <= 2 {
		return word
	}

	switch {
	case strings.HasSuffix(word, "sses"):
		word = word[:len(word)-2]
	case strings.HasSuffix(word, "ies"):
		word = word[:len(word)-2]
	case strings.HasSuffix(word, "ss"):
		// unchanged
	case strings.HasSuffix(word, "s"):
		word = word[:len(word)-1]
	}

	switch {
	case strings.HasSuffix(word, "eed"):
		if len(word) > 4 {
			word = word[:len(word)-1]
		}
	case strings.HasSuffix(word, "ed"):
		if hasVowel(word[:len(word)-2]) {
			word = step1bFixup(word[:len(word)-2])
		}
	case strings.HasSuffix(word, "ing"):
		if hasVowel(word[:len(word)-3]) {
			word = step1bFixup(word[:len(word)-3])
		}
	}

	for _, r := range step2Replacements {
		if strings.HasSuffix(word, r.suffix) && len(word) > len(r.suffix)+2 {
			word = word[:len(word)-len(r.suffix)] + r.replacement
			break
		}
	}

	switch {
	case strings.HasSuffix(word, "icate") && len(word) > 7:
		word = word[:len(word)-3]
	case strings.HasSuffix(word, "ative") && len(word) > 7:
		word = word[:len(word)-5]
	case strings.HasSuffix(word, "alize") && len(word) > 7:
		word = word[:len(word)-3]
	case strings.HasSuffix(word, "ful") && len(word) > 5:
		word = word[:len(word)-3]
	case strings.HasSuffix(word, "ness") && len(word) > 6:
		word = word[:len(word)-4]
	}

	return word
}

type suffixReplacement struct {
	suffix      string
	replacement string
}

var step2Replacements = []suffixReplacement{
	{"ational", "ate"},
	{"tional", "tion"},
	{"enci", "ence"},
	{"anci", "ance"},
	{"izer", "ize"},
	{"ation", "ate"},
	{"ator", "ate"},
	{"alism", "al"},
	{"iveness", "ive"},
	{"fulness", "ful"},
	{"ousness", "ous"},
	{"aliti", "al"},
	{"iviti", "ive"},
	{"biliti", "ble"},
}

func hasVowel(s string) bool {
	return strings.ContainsAny(s, "aeiou")
}

func step1bFixup(word string) string {
	if strings.HasSuffix(word, "at") || strings.HasSuffix(word, "bl") || strings.HasSuffix(word, "iz") {
		return word + "e"
	}
	if len(word) > 2 && word[len(word)-1] == word[len(word)-2] && !strings.ContainsRune("lsz", rune(word[len(word)-1])) {
		return word[:len(word)-1]
	}
	return word
}
