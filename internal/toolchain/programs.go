package toolchain

// Programs names the executables used by each collaborator. Values may be
// bare names resolved through PATH or absolute paths.
type Programs struct {
	File         string `mapstructure:"file" yaml:"file"`
	SevenZip     string `mapstructure:"sevenzip" yaml:"sevenzip"`
	PDFToText    string `mapstructure:"pdftotext" yaml:"pdftotext"`
	DjVuTxt      string `mapstructure:"djvutxt" yaml:"djvutxt"`
	CatDoc       string `mapstructure:"catdoc" yaml:"catdoc"`
	EbookConvert string `mapstructure:"ebook_convert" yaml:"ebook_convert"`
	EbookMeta    string `mapstructure:"ebook_meta" yaml:"ebook_meta"`
	PDFToPPM     string `mapstructure:"pdftoppm" yaml:"pdftoppm"`
	DDjVu        string `mapstructure:"ddjvu" yaml:"ddjvu"`
	DjVuSed      string `mapstructure:"djvused" yaml:"djvused"`
	Tesseract    string `mapstructure:"tesseract" yaml:"tesseract"`
}

// DefaultPrograms returns the conventional program names.
func DefaultPrograms() Programs {
	return Programs{
		File:         "file",
		SevenZip:     "7z",
		PDFToText:    "pdftotext",
		DjVuTxt:      "djvutxt",
		CatDoc:       "catdoc",
		EbookConvert: "ebook-convert",
		EbookMeta:    "ebook-meta",
		PDFToPPM:     "pdftoppm",
		DDjVu:        "ddjvu",
		DjVuSed:      "djvused",
		Tesseract:    "tesseract",
	}
}

// withDefaults fills empty entries from DefaultPrograms.
func (p Programs) withDefaults() Programs {
	d := DefaultPrograms()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&p.File, d.File)
	fill(&p.SevenZip, d.SevenZip)
	fill(&p.PDFToText, d.PDFToText)
	fill(&p.DjVuTxt, d.DjVuTxt)
	fill(&p.CatDoc, d.CatDoc)
	fill(&p.EbookConvert, d.EbookConvert)
	fill(&p.EbookMeta, d.EbookMeta)
	fill(&p.PDFToPPM, d.PDFToPPM)
	fill(&p.DDjVu, d.DDjVu)
	fill(&p.DjVuSed, d.DjVuSed)
	fill(&p.Tesseract, d.Tesseract)
	return p
}
