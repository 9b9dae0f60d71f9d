package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrBadBlock reports a malformed IEEE 488.2 arbitrary block header.
var ErrBadBlock = errors.New("malformed block header")

// MaxBlockSize bounds a definite-length block; larger headers are rejected
// rather than allocated.
const MaxBlockSize = 256 * 1024 * 1024

// ReadBlock reads one arbitrary block response from r. Definite-length
// blocks have the form #NLLLL<data> where N is the number of length digits;
// #0 introduces an indefinite block terminated by a newline. Leading
// whitespace is skipped. Bytes after a definite block (usually the
// terminator) are left in r.
func ReadBlock(r *bufio.Reader) ([]byte, error) {
	var c byte
	var err error
	for {
		c, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
		if c != ' ' && c != '\t' && c != '\r' && c != '\n' {
			break
		}
	}
	if c != '#' {
		return nil, fmt.Errorf("%w: expected '#', got %q", ErrBadBlock, c)
	}

	d, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if d < '0' || d > '9' {
		return nil, fmt.Errorf("%w: bad digit count %q", ErrBadBlock, d)
	}
	digits := int(d - '0')

	if digits == 0 {
		data, err := r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		return data[:len(data)-1], nil
	}

	lenText := make([]byte, digits)
	if _, err := io.ReadFull(r, lenText); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(string(lenText))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad length %q", ErrBadBlock, lenText)
	}
	if n > MaxBlockSize {
		return nil, fmt.Errorf("%w: length %d exceeds limit", ErrBadBlock, n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// EncodeBlock wraps data in a definite-length block header. The digit
// count is a single character, so payloads of a billion bytes or more get
// the indefinite #0 header instead and rely on the caller's terminator.
func EncodeBlock(data []byte) []byte {
	header := blockHeader(len(data))
	out := make([]byte, 0, len(header)+len(data))
	out = append(out, header...)
	return append(out, data...)
}

func blockHeader(n int) []byte {
	length := strconv.Itoa(n)
	if len(length) > 9 {
		return []byte("#0")
	}
	return append([]byte{'#', byte('0' + len(length))}, length...)
}
