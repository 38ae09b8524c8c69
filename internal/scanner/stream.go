package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// ReadKeys pumps runes from a reader device stream into the collector until
// the stream ends or ctx is canceled. CR and LF both count as the scan
// terminator.
func ReadKeys(ctx context.Context, r io.Reader, c *Collector, logger *zerolog.Logger) error {
	br := bufio.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ch, _, err := br.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("scanner stream closed")
				return nil
			}
			return err
		}

		switch ch {
		case '\r', '\n':
			c.HandleKey(KeyEvent{Enter: true})
		default:
			c.HandleKey(KeyEvent{Rune: ch})
		}
	}
}
