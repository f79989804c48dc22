package isbn

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dashFolder maps dash, hyphen and minus look-alikes that show up in badly
// OCR-ed or typeset books to an ASCII hyphen. NFKC already handles fullwidth
// digits and most compatibility forms.
var dashFolder = strings.NewReplacer(
	"\u00AD", "-", "\u02D7", "-", "\u058A", "-", "\u05BE", "-",
	"\u1428", "-", "\u1B78", "-", "\u2010", "-", "\u2011", "-",
	"\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-",
	"\u2043", "-", "\u207B", "-", "\u208B", "-", "\u2212", "-",
	"\u23AF", "-", "\u2500", "-", "\u2796", "-", "\u2E3A", "-",
	"\u2E3B", "-", "\u3161", "-", "\u30FC", "-", "\uFE63", "-",
	"\uFF0D", "-",
)

// PrepareText rewrites text so that ISBNs typeset with Unicode digits or
// dashes match the ASCII pattern used by Find.
func PrepareText(text string) string {
	out, _, err := transform.String(norm.NFKC, text)
	if err != nil {
		out = text
	}
	return dashFolder.Replace(out)
}
