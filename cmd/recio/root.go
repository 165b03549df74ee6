package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/recio"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recio",
		Short: "Read and merge framed record streams",
		Long: `recio reads record streams framed by a length prefix, a delimiter byte
or a fixed length, optionally compressed with gzip, lz4 or zstd, from local
files, standard input ("-"), s3://bucket/key or minio://bucket/key.

Several inputs, or a blob prefix ending in "/", are merged in byte order.
Every flag can also be set through the environment (RECIO_BUFFER_SIZE,
RECIO_FORMAT, ...) or a config file given with --config.`,
		SilenceUsage: true,
	}
	addFlags(rootCmd.PersistentFlags())

	v, err := newViper(rootCmd.PersistentFlags())
	if err != nil {
		panic(err)
	}
	rootCmd.AddCommand(newCatCmd(v), newCountCmd(v), newFrameCmd(v))
	return rootCmd
}

// session holds the state shared by the subcommands for one run.
type session struct {
	cfg     *Config
	log     *recio.Logger
	metrics *recio.BasicMetricsCollector
	leaf    []recio.Option
	node    []recio.Option
	stores  *storeFactory
}

func newSession(v *viper.Viper, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	log, err := cfg.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	leaf, err := cfg.readerOptions()
	if err != nil {
		return nil, err
	}

	metrics := &recio.BasicMetricsCollector{}
	common := []recio.Option{
		recio.WithLogger(log),
		recio.WithMetrics(metrics),
		recio.WithResources(cfg.resources()),
		recio.WithContext(cmd.Context()),
	}
	node := append([]recio.Option(nil), common...)
	if cfg.KeepFirst {
		node = append(node, recio.WithKeepFirst())
	}

	return &session{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		leaf:    append(leaf, common...),
		node:    node,
		stores:  newStoreFactory(cfg),
	}, nil
}

// open returns a single input for args, merging when there is more than
// one or when a merge mode is requested.
func (s *session) open(ctx context.Context, args []string) (*recio.Input, error) {
	if len(args) == 1 && !s.cfg.KeepFirst {
		return s.stores.openInput(ctx, args[0], s.leaf)
	}

	root, err := recio.NewMerge(recio.BytesCompare, s.node...)
	if err != nil {
		return nil, err
	}
	for i, arg := range args {
		opts := append(append([]recio.Option(nil), s.leaf...), recio.WithTag(i))
		in, err := s.stores.openInput(ctx, arg, opts)
		if err != nil {
			_ = root.Close()
			return nil, err
		}
		if err := root.Add(in, i); err != nil {
			_ = in.Close()
			_ = root.Close()
			return nil, err
		}
	}
	return root, nil
}

func (s *session) logStats(ctx context.Context) {
	st := s.metrics.GetStats()
	s.log.InfoContext(ctx, "read complete",
		"opens", st.OpenCount,
		"records", st.RecordsRead,
		"bytes", st.BytesRead,
		"oversized", st.OversizedCount,
		"partial_dropped", st.PartialDropped,
		"decode_errors", st.DecodeErrors,
	)
}

func newCatCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <input>...",
		Short: "Write records to stdout, one per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(v, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in, err := s.open(ctx, args)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			err = s.cat(in, w)
			err = errors.Join(err, w.Flush(), in.Close())
			s.logStats(ctx)
			return err
		},
	}
	cmd.Flags().Bool("unique", false, "collapse equal records, printing how many inputs hold each")
	cmd.Flags().Bool("keep-first", false, "collapse equal records to the first one")
	cmd.Flags().Bool("group", false, "print each run of equal records on one tab-separated line")
	cmd.MarkFlagsMutuallyExclusive("unique", "keep-first", "group")
	_ = v.BindPFlags(cmd.Flags())
	return cmd
}

func (s *session) cat(in *recio.Input, w io.Writer) error {
	switch {
	case s.cfg.Unique:
		for {
			rec, n, err := in.AdvanceUnique()
			if err != nil {
				return endOfStream(err)
			}
			if _, err := fmt.Fprintf(w, "%d\t%s\n", n, rec.Data); err != nil {
				return err
			}
		}
	case s.cfg.Group:
		for {
			group, _, err := in.AdvanceGroup(nil)
			if err != nil {
				return endOfStream(err)
			}
			for i := range group {
				sep := "\t"
				if i == len(group)-1 {
					sep = "\n"
				}
				if _, err := fmt.Fprintf(w, "%s%s", group[i].Data, sep); err != nil {
					return err
				}
			}
		}
	default:
		for {
			rec, err := in.Advance()
			if err != nil {
				return endOfStream(err)
			}
			if _, err := w.Write(rec.Data); err != nil {
				return err
			}
			if _, err := w.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}
}

func newCountCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "count <input>...",
		Short: "Print the number of records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(v, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in, err := s.open(ctx, args)
			if err != nil {
				return err
			}
			n, err := in.Count()
			err = errors.Join(err, in.Close())
			s.logStats(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(n, 10))
			return err
		},
	}
}

func endOfStream(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
