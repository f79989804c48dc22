package discovery

import (
	"fmt"
	"regexp"
	"strings"
)

// Default MIME patterns, matched case-insensitively against the bare type.
const (
	DefaultDirectGrepMIME = `^(text/(plain|xml|html)|application/xml)$`
	DefaultIgnoredMIME    = `^(image/(gif|svg.+)|application/(x-shockwave-flash|CDFV2|vnd.ms-opentype|x-font-ttf|x-dosexec|vnd.ms-excel|x-java-applet)|audio/.+|video/.+)$`
)

// MimeClass is a coarse media-type category used to choose tactics.
type MimeClass int

const (
	ClassOther MimeClass = iota
	ClassDirectText
	ClassIgnored
	ClassPDF
	ClassDjVu
	ClassImage
)

func (c MimeClass) String() string {
	switch c {
	case ClassDirectText:
		return "direct-text"
	case ClassIgnored:
		return "ignored"
	case ClassPDF:
		return "pdf"
	case ClassDjVu:
		return "djvu"
	case ClassImage:
		return "image"
	default:
		return "other"
	}
}

// classifier maps MIME types to classes.
type classifier struct {
	direct  *regexp.Regexp
	ignored *regexp.Regexp
}

func newClassifier(direct, ignored string) (*classifier, error) {
	if direct == "" {
		direct = DefaultDirectGrepMIME
	}
	if ignored == "" {
		ignored = DefaultIgnoredMIME
	}
	d, err := regexp.Compile("(?i)" + direct)
	if err != nil {
		return nil, fmt.Errorf("direct grep mime pattern: %w", err)
	}
	i, err := regexp.Compile("(?i)" + ignored)
	if err != nil {
		return nil, fmt.Errorf("ignored mime pattern: %w", err)
	}
	return &classifier{direct: d, ignored: i}, nil
}

func (c *classifier) classify(mimeType string) MimeClass {
	switch {
	case c.direct.MatchString(mimeType):
		return ClassDirectText
	case c.ignored.MatchString(mimeType):
		return ClassIgnored
	case mimeType == "application/pdf":
		return ClassPDF
	case strings.HasPrefix(mimeType, "image/vnd.djvu"):
		return ClassDjVu
	case strings.HasPrefix(mimeType, "image/"):
		return ClassImage
	default:
		return ClassOther
	}
}
