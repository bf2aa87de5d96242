package ofx

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element is a node of the parsed document. Leaf elements carry a Value;
// aggregates carry Children.
type Element struct {
	Name     string
	Value    string
	Children []*Element
	Pos      Position
}

// Document is a parsed OFX file.
type Document struct {
	Header Header
	Root   *Element // unnamed; holds the top-level elements
}

// Aggregates named in OFX 1.x/2.x statement responses. Any other element is a
// leaf: in SGML it is closed by the next opening tag even when empty.
var aggregateElements = map[string]bool{
	"OFX": true, "STATUS": true, "FI": true, "PAYEE": true, "STMTTRN": true,
	"CURRENCY": true, "ORIGCURRENCY": true, "ACCTINFO": true, "BANKACCTINFO": true,
	"CCACCTINFO": true, "INVACCTINFO": true, "INVBANKTRAN": true, "BALLIST": true,
	"SECID": true,
}

// aggregateSuffixes cover the message-set, transaction wrapper, account and
// balance aggregates without listing every variant.
var aggregateSuffixes = []string{
	"MSGSRSV1", "MSGSRQV1", "TRNRS", "TRNRQ", "RS", "RQ",
	"ACCTFROM", "ACCTTO", "TRANLIST", "POSLIST", "BAL",
}

// truncationGuards are the elements that must be closed before end of input.
// A file that stops inside one of them holds a partial statement.
var truncationGuards = map[string]bool{
	"STMTRS": true, "CCSTMTRS": true, "INVSTMTRS": true,
	"BANKTRANLIST": true, "INVTRANLIST": true, "STMTTRN": true,
}

func isAggregateName(name string) bool {
	if aggregateElements[name] {
		return true
	}
	for _, suffix := range aggregateSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// ParseDocument lexes and parses data into a Document.
//
// Unclosed elements are closed implicitly: an element that is not a known
// aggregate is a leaf and is closed by the next opening tag, and a closing
// tag closes every element opened after its match. A closing tag for a leaf
// that was closed early turns it back into an aggregate holding the siblings
// that followed it. A closing tag with no match is an error. Open elements
// are closed at end of input unless the input stops inside a statement.
func ParseDocument(data []byte) (*Document, error) {
	lex, err := NewLexer(data)
	if err != nil {
		return nil, err
	}

	root := &Element{}
	stack := []*Element{root}

	for {
		tok, err := lex.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case OpenTag:
			if top := stack[len(stack)-1]; len(stack) > 1 && isClosedLeaf(top) {
				stack = stack[:len(stack)-1]
			}
			el := &Element{Name: tok.Name, Pos: tok.Pos}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, el)
			stack = append(stack, el)

		case Text:
			// Stray text outside any element is ignored.
			if top := stack[len(stack)-1]; top != root {
				top.Value += tok.Text
			}

		case CloseTag:
			if match := openIndex(stack, tok.Name); match > 0 {
				stack = stack[:match]
				continue
			}
			depth, ok := reopen(stack, tok.Name)
			if !ok {
				return nil, &Error{Kind: ErrUnbalancedTag, Tag: tok.Name, Pos: tok.Pos}
			}
			stack = stack[:depth+1]
		}
	}

	for _, el := range stack[1:] {
		if truncationGuards[el.Name] {
			return nil, &Error{Kind: ErrUnterminatedDocument, Tag: el.Name, Pos: el.Pos,
				Err: errors.New("input ends before the element is closed")}
		}
	}
	return &Document{Header: lex.Header(), Root: root}, nil
}

func isClosedLeaf(e *Element) bool {
	return len(e.Children) == 0 && !isAggregateName(e.Name)
}

// openIndex returns the stack index of the innermost open element named
// name, or -1.
func openIndex(stack []*Element, name string) int {
	for i := len(stack) - 1; i > 0; i-- {
		if stack[i].Name == name {
			return i
		}
	}
	return -1
}

// reopen finds an empty leaf named name among the children of the open
// elements and moves the siblings that followed it inside it. It returns the
// stack index of the element that now holds the reopened aggregate.
func reopen(stack []*Element, name string) (int, bool) {
	for depth := len(stack) - 1; depth >= 0; depth-- {
		parent := stack[depth]
		for i := len(parent.Children) - 1; i >= 0; i-- {
			c := parent.Children[i]
			if c.Name != name || len(c.Children) > 0 || strings.TrimSpace(c.Value) != "" {
				continue
			}
			c.Children = append(c.Children, parent.Children[i+1:]...)
			parent.Children = parent.Children[:i+1]
			return depth, true
		}
	}
	return 0, false
}

// IsAggregate reports whether the element has child elements.
func (e *Element) IsAggregate() bool {
	return len(e.Children) > 0
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name, in order.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find follows path through first-match children. It returns nil if any
// step is missing.
func (e *Element) Find(path ...string) *Element {
	cur := e
	for _, name := range path {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Text returns the trimmed value at path, or "" if absent.
func (e *Element) Text(path ...string) string {
	if el := e.Find(path...); el != nil {
		return strings.TrimSpace(el.Value)
	}
	return ""
}

// Walk visits e and its descendants depth-first in document order. If fn
// returns false the element's children are skipped.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Dump writes an indented outline of the tree.
func (e *Element) Dump(w io.Writer) error {
	return e.dump(w, 0)
}

func (e *Element) dump(w io.Writer, depth int) error {
	indent := depth
	if e.Name != "" {
		var err error
		if e.IsAggregate() || e.Value == "" {
			_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), e.Name)
		} else {
			_, err = fmt.Fprintf(w, "%s%s = %s\n", strings.Repeat("  ", depth), e.Name, e.Value)
		}
		if err != nil {
			return err
		}
		indent++
	}
	for _, c := range e.Children {
		if err := c.dump(w, indent); err != nil {
			return err
		}
	}
	return nil
}
