package ofx

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	ErrFileNotFound         = errors.New("file not found")
	ErrMalformedHeader      = errors.New("malformed OFX header")
	ErrUnterminatedDocument = errors.New("unterminated OFX document")
	ErrUnbalancedTag        = errors.New("unbalanced tag")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// Position locates a token in the input.
type Position struct {
	Offset int // byte offset from the start of the input
	Line   int // 1-based
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, offset %d", p.Line, p.Offset)
}

// Error is a parse failure of one of the kinds above.
type Error struct {
	Kind  error
	Err   error
	Tag   string
	Value string
	Pos   Position
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Tag != "" {
		fmt.Fprintf(&b, " <%s>", e.Tag)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Pos.Line > 0 {
		fmt.Fprintf(&b, " at %s", e.Pos)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FileNotFoundError reports a path that does not resolve to a readable file.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrFileNotFound, e.Path)
}

// Is reports ErrFileNotFound and fs.ErrNotExist as matches.
func (e *FileNotFoundError) Is(target error) bool {
	return target == ErrFileNotFound || target == fs.ErrNotExist
}

func headerError(pos Position, format string, args ...any) error {
	return &Error{Kind: ErrMalformedHeader, Pos: pos, Err: fmt.Errorf(format, args...)}
}

func unterminatedError(pos Position, format string, args ...any) error {
	return &Error{Kind: ErrUnterminatedDocument, Pos: pos, Err: fmt.Errorf(format, args...)}
}
