package vault

import (
	"fmt"
	"io"
	"strings"

	"ht-go/internal/ht"
)

// checkName rejects object names that could escape a vault root or that
// object stores would normalise differently.
func checkName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return fmt.Errorf("%w: bad object name %q", ht.ErrInvalidInput, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: bad object name %q", ht.ErrInvalidInput, name)
		}
	}
	return nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
