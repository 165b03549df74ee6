package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/recio/codec"
	"github.com/hupe1980/recio/format"
)

func newFrameCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frame <input>...",
		Short: "Re-frame records into another format and codec",
		Long: `frame reads records with the global framing flags and writes them to
stdout framed with --to, optionally compressed with --to-compression.
Several inputs are merged first, so frame can also produce one sorted run
from many.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(v, cmd)
			if err != nil {
				return err
			}
			delim, err := parseDelimiter(v.GetString("to-delimiter"))
			if err != nil {
				return err
			}
			target, err := format.Parse(v.GetString("to"), delim, v.GetInt("to-fixed"))
			if err != nil {
				return err
			}
			kind, ok := codec.ByName(v.GetString("to-compression"))
			if !ok {
				return fmt.Errorf("unknown compression %q", v.GetString("to-compression"))
			}

			ctx := cmd.Context()
			n, err := s.frame(ctx, args, bufio.NewWriter(cmd.OutOrStdout()), target, kind)
			s.logStats(ctx)
			if err != nil {
				return err
			}
			s.log.InfoContext(ctx, "framed records", "records", n, "format", target.String(), "compression", kind.String())
			return nil
		},
	}
	cmd.Flags().String("to", "prefix", "output framing: prefix, delimiter or fixed")
	cmd.Flags().String("to-delimiter", `\n`, "output delimiter for delimiter framing")
	cmd.Flags().Int("to-fixed", 0, "output record length for fixed framing")
	cmd.Flags().String("to-compression", "none", "output codec: none, gzip, lz4 or zstd")
	_ = v.BindPFlags(cmd.Flags())
	return cmd
}

func (s *session) frame(ctx context.Context, args []string, out *bufio.Writer, target format.Format, kind codec.Kind) (int, error) {
	in, err := s.open(ctx, args)
	if err != nil {
		return 0, err
	}

	cw, err := codec.NewWriter(kind, out)
	if err != nil {
		return 0, errors.Join(err, in.Close())
	}
	fw, err := format.NewWriter(cw, target)
	if err != nil {
		return 0, errors.Join(err, in.Close())
	}

	for {
		rec, err := in.Advance()
		if err != nil {
			err = endOfStream(err)
			return fw.Count(), errors.Join(err, cw.Close(), out.Flush(), in.Close())
		}
		if err := fw.Write(rec.Data); err != nil {
			return fw.Count(), errors.Join(err, cw.Close(), out.Flush(), in.Close())
		}
	}
}
