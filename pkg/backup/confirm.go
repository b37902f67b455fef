package backup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer gates destructive operations. Anything but an explicit yes is
// a refusal.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// StaticConfirmer answers every prompt the same way, e.g. for --yes.
type StaticConfirmer bool

func (s StaticConfirmer) Confirm(context.Context, string) (bool, error) {
	return bool(s), nil
}

// PromptConfirmer asks on out and reads the answer from in.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

func (p *PromptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(p.out, "%s (yes/no): ", prompt); err != nil {
		return false, err
	}
	answer, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return IsAffirmative(answer), nil
}

// IsAffirmative reports whether an answer is "yes", ignoring case and
// surrounding whitespace.
func IsAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}
