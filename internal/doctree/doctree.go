package doctree

// Document is what a source parser hands to the rest of the pipeline:
// per-page layout primitives, no interpretation yet.
type Document struct {
	Title string // Document title (from metadata or filename)
	Pages []Page
}

// Page is one page's layout primitives in reading order.
type Page struct {
	Blocks []Block
}

// Block is a visually grouped set of lines.
type Block struct {
	Lines []Line
}

// Line is a single baseline of text, split into spans on style changes.
type Line struct {
	Spans []Span
}

// Span is a run of glyphs sharing one font and size.
type Span struct {
	Text     string
	FontSize float64
	FontName string
}

// TextRun is a span annotated with the style metadata structure detection needs.
type TextRun struct {
	Text      string
	FontSize  float64
	Bold      bool
	PageIndex int // 0-based index into Document.Pages
}

// BlockKind tags a logical block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Heading
)

func (k BlockKind) String() string {
	if k == Heading {
		return "heading"
	}
	return "paragraph"
}

// MarshalText lets BlockKind serialize as "heading"/"paragraph" in JSON.
func (k BlockKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LogicalBlock is a heading or paragraph recovered from styled runs.
type LogicalBlock struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// Chunk is a token-bounded group of consecutive logical blocks, ready to be
// sent to a generator.
type Chunk struct {
	Text   string `json:"text"`
	Index  int    `json:"index"`  // Sequence number within document
	Tokens int    `json:"tokens"` // Token count under the counter used to build it
}

// PageCount reports the number of pages, tolerating a nil document.
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}
