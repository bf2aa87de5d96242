package ofx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aclindsa/xml"
	"golang.org/x/text/encoding/charmap"
)

// TokenKind distinguishes lexer tokens.
type TokenKind int

// Token kinds.
const (
	OpenTag TokenKind = iota + 1
	Text
	CloseTag
)

func (k TokenKind) String() string {
	switch k {
	case OpenTag:
		return "OpenTag"
	case Text:
		return "Text"
	case CloseTag:
		return "CloseTag"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one element of the body. Name is set for tags, Text for text.
type Token struct {
	Name string
	Text string
	Pos  Position
	Kind TokenKind
}

// Lexer splits an OFX body into tokens. It handles both the SGML
// variant, where leaf elements have no closing tag, and the XML variant.
type Lexer struct {
	header  Header
	data    []byte
	pending []Token
	pos     int
	line    int
	sawTag  bool
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewLexer reads the header of data and positions the lexer at the body.
func NewLexer(data []byte) (*Lexer, error) {
	l := &Lexer{
		data:   data,
		line:   1,
		header: Header{Fields: make(map[string]string)},
	}
	if bytes.HasPrefix(data, utf8BOM) {
		l.pos = len(utf8BOM)
	}
	l.skipSpace()

	if l.pos >= len(l.data) {
		return l, nil
	}

	var err error
	if l.data[l.pos] == '<' {
		err = l.readXMLProlog()
	} else {
		err = l.readSGMLHeader()
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Header returns the header read by NewLexer.
func (l *Lexer) Header() Header {
	return l.header
}

// Next returns the next token, or io.EOF once the input is exhausted.
func (l *Lexer) Next() (Token, error) {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, nil
	}

	for l.pos < len(l.data) {
		if l.isMarkupStart(l.pos) {
			tok, ok, err := l.readMarkup()
			if err != nil {
				return Token{}, err
			}
			if ok {
				return tok, nil
			}
			continue
		}
		tok, ok, err := l.readText()
		if err != nil {
			return Token{}, err
		}
		if ok {
			return tok, nil
		}
	}

	if !l.sawTag {
		return Token{}, unterminatedError(l.position(), "no OFX body")
	}
	return Token{}, io.EOF
}

// readText consumes character data up to the next tag. CDATA sections are
// part of the text run.
func (l *Lexer) readText() (Token, bool, error) {
	end := l.pos
	for end < len(l.data) {
		if l.isCDATAStart(end) {
			n := bytes.Index(l.data[end+len(cdataOpen):], cdataClose)
			if n < 0 {
				l.advance(end - l.pos)
				return Token{}, false, unterminatedError(l.position(), "CDATA section not closed")
			}
			end += len(cdataOpen) + n + len(cdataClose)
			continue
		}
		if l.isMarkupStart(end) {
			break
		}
		end++
	}
	raw := l.data[l.pos:end]

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	l.advance(len(raw) - len(trimmed))
	pos := l.position()
	l.advance(len(trimmed))

	text := decodeText(bytes.TrimRight(trimmed, " \t\r\n"))
	if text == "" {
		return Token{}, false, nil
	}
	return Token{Kind: Text, Text: text, Pos: pos}, true, nil
}

func (l *Lexer) readMarkup() (Token, bool, error) {
	start := l.position()
	rest := l.data[l.pos:]

	switch {
	case bytes.HasPrefix(rest, []byte("<!--")):
		return Token{}, false, l.skipPast("-->", start, "comment")
	case bytes.HasPrefix(rest, []byte("<?")):
		return Token{}, false, l.skipPast("?>", start, "processing instruction")
	case bytes.HasPrefix(rest, []byte("<!")):
		return Token{}, false, l.skipPast(">", start, "declaration")
	}

	i := 1
	closing := rest[i] == '/'
	if closing {
		i++
	}
	nameStart := i
	for i < len(rest) && isNameChar(rest[i]) {
		i++
	}
	name := strings.ToUpper(string(rest[nameStart:i]))

	// Legacy SGML writers sometimes drop the '>' at the end of a line.
	selfClosing := false
	consumed := -1
	for j := i; j < len(rest); j++ {
		c := rest[j]
		if c == '>' {
			selfClosing = !closing && bytes.HasSuffix(bytes.TrimRight(rest[i:j], " \t"), []byte("/"))
			consumed = j + 1
			break
		}
		if c == '\n' || c == '\r' || c == '<' {
			consumed = j
			break
		}
	}
	if consumed < 0 {
		return Token{}, false, unterminatedError(start, "tag <%s> not closed", name)
	}
	l.advance(consumed)
	l.sawTag = true

	if closing {
		return Token{Kind: CloseTag, Name: name, Pos: start}, true, nil
	}
	if selfClosing {
		l.pending = append(l.pending, Token{Kind: CloseTag, Name: name, Pos: start})
	}
	return Token{Kind: OpenTag, Name: name, Pos: start}, true, nil
}

func (l *Lexer) skipPast(terminator string, start Position, what string) error {
	end := bytes.Index(l.data[l.pos:], []byte(terminator))
	if end < 0 {
		return unterminatedError(start, "%s not closed", what)
	}
	l.advance(end + len(terminator))
	return nil
}

// isMarkupStart reports whether the '<' at i opens a tag, comment or declaration.
func (l *Lexer) isMarkupStart(i int) bool {
	if l.data[i] != '<' || i+1 >= len(l.data) {
		return false
	}
	switch c := l.data[i+1]; {
	case c == '!':
		return !l.isCDATAStart(i)
	case c == '?':
		return true
	case c == '/':
		return i+2 < len(l.data) && isLetter(l.data[i+2])
	default:
		return isLetter(c)
	}
}

func (l *Lexer) isCDATAStart(i int) bool {
	return bytes.HasPrefix(l.data[i:], cdataOpen)
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line}
}

// advance moves n bytes forward, counting \n, \r\n and lone \r as one line break each.
func (l *Lexer) advance(n int) {
	end := l.pos + n
	for ; l.pos < end; l.pos++ {
		switch l.data[l.pos] {
		case '\n':
			l.line++
		case '\r':
			if l.pos+1 >= len(l.data) || l.data[l.pos+1] != '\n' {
				l.line++
			}
		}
	}
}

func (l *Lexer) skipSpace() {
	n := 0
	for l.pos+n < len(l.data) && isSpace(l.data[l.pos+n]) {
		n++
	}
	l.advance(n)
}

func (l *Lexer) skipLineEnding() {
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.advance(1)
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.advance(1)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isNameChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
}

var (
	cdataOpen  = []byte("<![CDATA[")
	cdataClose = []byte("]]>")
)

// textEntities adds the HTML entity names some OFX 1.x writers emit, and
// upper-case forms of the XML ones. &nbsp; reads as a plain space.
var textEntities = func() map[string]string {
	m := make(map[string]string, len(xml.HTMLEntity)+6)
	for name, value := range xml.HTMLEntity {
		m[name] = value
	}
	m["nbsp"] = " "
	for name, value := range map[string]string{
		"AMP": "&", "LT": "<", "GT": ">", "QUOT": `"`, "APOS": "'", "NBSP": " ",
	} {
		m[name] = value
	}
	return m
}()

// decodeText resolves character references and unwraps CDATA sections.
// Unknown entities are kept verbatim. Bytes that are not valid UTF-8 are
// read as Windows-1252, the usual OFX 1.x charset.
func decodeText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if !utf8.Valid(raw) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
			raw = decoded
		}
	}
	if bytes.IndexAny(raw, "&<") < 0 {
		return string(raw)
	}

	// The trailing space keeps an entity at the very end from reading as
	// truncated input.
	input := append(escapeStrayLT(raw), ' ')
	d := xml.NewDecoder(bytes.NewReader(input))
	d.Strict = false
	d.Entity = textEntities

	var b strings.Builder
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			return strings.TrimSuffix(b.String(), " ")
		}
		if err != nil {
			return string(raw)
		}
		if data, ok := tok.(xml.CharData); ok {
			b.Write(data)
		}
	}
}

// escapeStrayLT escapes every '<' outside a CDATA section.
func escapeStrayLT(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+8)
	for len(raw) > 0 {
		if bytes.HasPrefix(raw, cdataOpen) {
			n := bytes.Index(raw, cdataClose)
			if n < 0 {
				n = len(raw)
			} else {
				n += len(cdataClose)
			}
			out = append(out, raw[:n]...)
			raw = raw[n:]
			continue
		}
		if raw[0] == '<' {
			out = append(out, "&lt;"...)
		} else {
			out = append(out, raw[0])
		}
		raw = raw[1:]
	}
	return out
}
