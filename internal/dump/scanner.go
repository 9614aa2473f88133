package dump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// lexer is the low-level byte reader under the dump Reader. It consumes the
// stream strictly forward (one byte of lookahead, no seeking) and tracks the
// absolute byte offset for error reporting.
type lexer struct {
	r   *bufio.Reader
	off int64
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReaderSize(r, 64<<10)}
}

func (l *lexer) readByte() (byte, error) {
	b, err := l.r.ReadByte()
	if err == nil {
		l.off++
	}
	return b, err
}

func (l *lexer) unreadByte() {
	if err := l.r.UnreadByte(); err == nil {
		l.off--
	}
}

func (l *lexer) peekByte() (byte, bool) {
	b, err := l.r.Peek(1)
	if err != nil {
		return 0, false
	}
	return b[0], true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '$'
}

// skipSpace consumes whitespace and comments: "-- " line comments, "#" line
// comments, and "/* ... */" blocks (which covers MySQL's /*!40101 ... */
// conditional directives; their content is session housekeeping this engine
// discards anyway). Returns io.EOF once the stream is exhausted.
func (l *lexer) skipSpace() error {
	for {
		b, err := l.readByte()
		if err != nil {
			return err
		}
		switch {
		case isSpace(b):
			continue
		case b == '#':
			if err := l.skipLine(); err != nil {
				return err
			}
		case b == '-':
			// "--" only opens a comment when followed by whitespace or EOL.
			// Peek past the second '-' before committing so "--x" hands the
			// full "--" back to the caller intact.
			two, _ := l.r.Peek(2)
			if len(two) < 1 || two[0] != '-' || (len(two) == 2 && !isSpace(two[1])) {
				l.unreadByte()
				return nil
			}
			l.readByte()
			if err := l.skipLine(); err != nil {
				return err
			}
		case b == '/':
			next, ok := l.peekByte()
			if !ok || next != '*' {
				l.unreadByte()
				return nil
			}
			l.readByte()
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			l.unreadByte()
			return nil
		}
	}
}

func (l *lexer) skipLine() error {
	for {
		b, err := l.readByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return nil
		}
	}
}

func (l *lexer) skipBlockComment() error {
	for {
		b, err := l.readByte()
		if err != nil {
			return err
		}
		if b == '*' {
			if next, ok := l.peekByte(); ok && next == '/' {
				l.readByte()
				return nil
			}
		}
	}
}

// word reads a run of identifier/keyword bytes, skipping leading whitespace
// and comments. Empty result means the next byte is punctuation.
func (l *lexer) word() (string, error) {
	if err := l.skipSpace(); err != nil {
		return "", err
	}
	var sb bytes.Buffer
	for {
		b, err := l.readByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		if !isWordByte(b) {
			l.unreadByte()
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// ident reads an identifier: backtick-quoted (`` escapes a literal backtick),
// double-quoted, or bare. Leading whitespace/comments are skipped.
func (l *lexer) ident() (string, error) {
	if err := l.skipSpace(); err != nil {
		return "", err
	}
	b, ok := l.peekByte()
	if !ok {
		return "", io.EOF
	}
	if b == '`' || b == '"' {
		l.readByte()
		return l.quotedIdent(b)
	}
	w, err := l.word()
	if err != nil && err != io.EOF {
		return "", err
	}
	if w == "" {
		return "", fmt.Errorf("expected identifier")
	}
	return w, nil
}

func (l *lexer) quotedIdent(quote byte) (string, error) {
	var sb bytes.Buffer
	for {
		b, err := l.readByte()
		if err != nil {
			return "", fmt.Errorf("unterminated quoted identifier")
		}
		if b == quote {
			if next, ok := l.peekByte(); ok && next == quote {
				l.readByte()
				sb.WriteByte(quote)
				continue
			}
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// stringLit reads a string literal body after the opening quote has been
// consumed. It understands backslash escapes and doubled-quote escapes, and
// passes all other bytes through untouched, so multi-byte content survives
// regardless of encoding.
func (l *lexer) stringLit(quote byte) ([]byte, error) {
	var sb bytes.Buffer
	for {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string literal")
		}
		switch b {
		case quote:
			if next, ok := l.peekByte(); ok && next == quote {
				l.readByte()
				sb.WriteByte(quote)
				continue
			}
			return sb.Bytes(), nil
		case '\\':
			e, err := l.readByte()
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal")
			}
			switch e {
			case '0':
				sb.WriteByte(0)
			case 'b':
				sb.WriteByte('\b')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'Z':
				sb.WriteByte(26)
			default:
				// \', \", \\, \%, \_ and anything else: the escaped byte
				// stands for itself.
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(b)
		}
	}
}

// skipStatement consumes the remainder of the current statement through its
// terminating ';', honoring string literals, quoted identifiers and comments
// so a ';' inside a literal never ends the statement. When capture is
// non-nil, consumed bytes are appended to it up to its capacity.
func (l *lexer) skipStatement(capture *[]byte) error {
	note := func(b byte) {
		if capture != nil && len(*capture) < cap(*capture) {
			*capture = append(*capture, b)
		}
	}
	for {
		b, err := l.readByte()
		if err != nil {
			if err == io.EOF {
				return nil // unterminated trailing statement
			}
			return err
		}
		switch b {
		case ';':
			return nil
		case '\'', '"', '`':
			note(b)
			var body []byte
			if b == '`' {
				_, err = l.quotedIdent(b)
			} else {
				body, err = l.stringLit(b)
			}
			if err != nil {
				return err
			}
			for _, c := range body {
				note(c)
			}
			note(b)
		case '#':
			if err := l.skipLine(); err != nil && err != io.EOF {
				return err
			}
		case '-':
			if next, ok := l.peekByte(); ok && next == '-' {
				l.readByte()
				if nn, ok := l.peekByte(); !ok || isSpace(nn) {
					if err := l.skipLine(); err != nil && err != io.EOF {
						return err
					}
					continue
				}
				note(b)
				note(b)
				continue
			}
			note(b)
		case '/':
			if next, ok := l.peekByte(); ok && next == '*' {
				l.readByte()
				if err := l.skipBlockComment(); err != nil && err != io.EOF {
					return err
				}
				continue
			}
			note(b)
		default:
			note(b)
		}
	}
}
