package ofx

import (
	"bytes"
	"strings"
)

// Header holds the OFX header that precedes the body. SGML files carry
// KEY:VALUE lines; XML files carry attributes of the <?OFX ...?> instruction.
type Header struct {
	Fields map[string]string
	XML    bool
}

// Get returns a header field by case-insensitive key.
func (h Header) Get(key string) string {
	return h.Fields[strings.ToUpper(key)]
}

// Version returns the VERSION field, e.g. "102" or "211".
func (h Header) Version() string {
	return h.Get("VERSION")
}

// Format returns "OFXXML" for XML files and the DATA field (default "OFXSGML") otherwise.
func (h Header) Format() string {
	if h.XML {
		return "OFXXML"
	}
	if data := h.Get("DATA"); data != "" {
		return data
	}
	return "OFXSGML"
}

// readSGMLHeader consumes KEY:VALUE lines up to the first line that starts with '<'.
func (l *Lexer) readSGMLHeader() error {
	for l.pos < len(l.data) {
		rest := l.data[l.pos:]
		eol := bytes.IndexAny(rest, "\r\n")
		if eol < 0 {
			eol = len(rest)
		}
		line := bytes.TrimSpace(rest[:eol])

		if len(line) > 0 && line[0] == '<' {
			l.advance(bytes.IndexByte(rest, '<'))
			return nil
		}

		if len(line) > 0 {
			key, value, ok := bytes.Cut(line, []byte(":"))
			key = bytes.TrimSpace(key)
			if !ok || !validHeaderKey(key) {
				return headerError(l.position(), "line %q is not KEY:VALUE", line)
			}
			l.header.Fields[strings.ToUpper(string(key))] = string(bytes.TrimSpace(value))
		}

		l.advance(eol)
		l.skipLineEnding()
	}
	return nil
}

// readXMLProlog consumes <?xml ...?> and <?OFX ...?> instructions.
func (l *Lexer) readXMLProlog() error {
	for {
		l.skipSpace()
		if !bytes.HasPrefix(l.data[l.pos:], []byte("<?")) {
			return nil
		}
		start := l.position()
		end := bytes.Index(l.data[l.pos:], []byte("?>"))
		if end < 0 {
			return unterminatedError(start, "processing instruction not closed")
		}
		body := strings.TrimSpace(string(l.data[l.pos+2 : l.pos+end]))
		name, attrs := body, ""
		if sp := strings.IndexAny(body, " \t\r\n"); sp >= 0 {
			name, attrs = body[:sp], body[sp+1:]
		}

		if strings.EqualFold(name, "OFX") {
			fields, err := parseAttributes(attrs)
			if err != nil {
				return headerError(start, "%v", err)
			}
			for k, v := range fields {
				l.header.Fields[k] = v
			}
			l.header.XML = true
		}
		l.advance(end + 2)
	}
}

func validHeaderKey(key []byte) bool {
	if len(key) == 0 {
		return false
	}
	for _, c := range key {
		if !isNameChar(c) {
			return false
		}
	}
	return true
}

// parseAttributes reads KEY="VALUE" pairs; keys are upper-cased.
func parseAttributes(s string) (map[string]string, error) {
	fields := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return fields, nil
		}

		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, &attributeError{text: s}
		}
		key := strings.TrimSpace(s[:eq])
		if !validHeaderKey([]byte(key)) {
			return nil, &attributeError{text: s}
		}

		s = strings.TrimLeft(s[eq+1:], " \t")
		if s == "" || (s[0] != '"' && s[0] != '\'') {
			return nil, &attributeError{text: key}
		}
		quote := s[0]
		end := strings.IndexByte(s[1:], quote)
		if end < 0 {
			return nil, &attributeError{text: key}
		}
		fields[strings.ToUpper(key)] = s[1 : end+1]
		s = s[end+2:]
	}
}

type attributeError struct {
	text string
}

func (e *attributeError) Error() string {
	return "bad attribute near " + strings.TrimSpace(e.text)
}
