// Package ofx parses OFX and QFX statement files into accounts, balances and
// transactions. It reads both the SGML (OFX 1.x) and XML (OFX 2.x) variants.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/ofxread/internal/model"
)

// Parser implements OFX/QFX file parsing. A Parser holds only configuration
// and is safe for concurrent use.
type Parser struct {
	loc    *time.Location
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the zone used for dates that carry no offset and
// documents whose server timestamp carries none either.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithLogger sets the logger. The default is slog.Default at parse time.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a new OFX parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile parses the OFX/QFX file at path. A path that does not resolve to
// a readable file fails with *FileNotFoundError.
func (p *Parser) ParseFile(ctx context.Context, path string) ([]model.Account, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	accounts, err := p.ParseBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return accounts, nil
}

// Parse reads r to the end and parses it.
func (p *Parser) Parse(ctx context.Context, r io.Reader) ([]model.Account, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX data: %w", err)
	}
	return p.ParseBytes(ctx, data)
}

// ParseBytes parses an in-memory OFX/QFX document. Either every account is
// returned or an error is; there are no partial results.
func (p *Parser) ParseBytes(ctx context.Context, data []byte) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	accounts, err := extractAccounts(ctx, doc, p.loc)
	if err != nil {
		return nil, err
	}

	transactions := 0
	for i := range accounts {
		transactions += accounts[i].TransactionCount()
	}
	p.log().Debug("Parsed OFX document",
		"format", doc.Header.Format(),
		"version", doc.Header.Version(),
		"accounts", len(accounts),
		"transactions", transactions)

	return accounts, nil
}

func (p *Parser) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// ParseFile parses the file at path with a default Parser.
func ParseFile(path string) ([]model.Account, error) {
	return NewParser().ParseFile(context.Background(), path)
}

// ParseBytes parses data with a default Parser.
func ParseBytes(data []byte) ([]model.Account, error) {
	return NewParser().ParseBytes(context.Background(), data)
}

// ReadDocument reads and parses the file at path into its element tree
// without extracting accounts.
func ReadDocument(path string) (*Document, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// readFile reads path, reporting every open, stat or read failure as
// *FileNotFoundError so OS detail does not leak to callers. The handle is
// closed on every path.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileNotFoundError{Path: path}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return nil, &FileNotFoundError{Path: path}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &FileNotFoundError{Path: path}
	}
	return data, nil
}
