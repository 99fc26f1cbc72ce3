package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-28c256/memimage"
	"github.com/moffa90/go-28c256/programmer"
	"github.com/moffa90/go-28c256/transport"
)

func (a *app) portsCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that look like a programmer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.transportOptions()
			candidates, err := transport.Candidates(opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "no programmer found")
				return nil
			}
			for _, c := range candidates {
				if !probe {
					fmt.Fprintln(out, c)
					continue
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				ok := transport.Probe(ctx, c.Path, opts...)
				cancel()
				status := "no answer"
				if ok {
					status = "ready"
				}
				fmt.Fprintf(out, "%s\t%s\n", c, status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "open each port and check that a programmer answers")
	return cmd
}

func (a *app) readCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the whole chip into a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img := memimage.New()
			if _, err := a.runOperation(cmd, programmer.OpRead, img, false); err != nil {
				return err
			}
			if err := memimage.Save(out, img); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read 0x%04X bytes into %s (%s)\n",
				memimage.Size, out, memimage.FormatFromPath(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.hex for hex records, binary otherwise)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) writeCmd() *cobra.Command {
	var (
		in     string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Erase the chip and write a file to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := memimage.Load(in)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("verify") {
				verify = a.cfg.VerifyAfterWrite
			}

			res, err := a.runOperation(cmd, programmer.OpWrite, img, verify)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records, skipped %d blank in %s\n",
				res.Summary.Written, res.Summary.Skipped, res.Elapsed.Round(time.Millisecond))
			if verify {
				fmt.Fprintln(cmd.OutOrStdout(), "verify OK")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "image file to write")
	cmd.Flags().BoolVar(&verify, "verify", false, "read the chip back after writing")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the chip against a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := memimage.Load(in)
			if err != nil {
				return err
			}
			if _, err := a.runOperation(cmd, programmer.OpVerify, img, false); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "verify OK")
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "image file to compare against")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// simpleCmd builds the commands that need no image.
func (a *app) simpleCmd(op programmer.Operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.runOperation(cmd, op, nil, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s OK\n", op)
			return nil
		},
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var (
		in       string
		from, to string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print a hex dump of a file or of the chip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseAddress(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end := memimage.Size
			if to != "" {
				if end, err = parseAddress(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				end++
			}
			if end <= start {
				return fmt.Errorf("--to must not be below --from")
			}

			var img *memimage.Image
			if in != "" {
				if img, err = memimage.Load(in); err != nil {
					return err
				}
			} else {
				img = memimage.New()
				if err := a.readRows(cmd, img, start, end); err != nil {
					return err
				}
			}
			return memimage.Dump(cmd.OutOrStdout(), img, start, end, !all)
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "image file (default: read the chip)")
	cmd.Flags().StringVar(&from, "from", "0", "first address")
	cmd.Flags().StringVar(&to, "to", "", "last address (default: end of memory)")
	cmd.Flags().BoolVar(&all, "all", false, "include rows that are entirely 0xFF")
	return cmd
}

// readRows reads the dump rows covering [start, end) from the chip. The
// whole chip goes through a read job, anything smaller through a ranged
// read.
func (a *app) readRows(cmd *cobra.Command, img *memimage.Image, start, end int) error {
	first := start &^ (memimage.RowSize - 1)
	last := min((end+memimage.RowSize-1)&^(memimage.RowSize-1), memimage.Size)
	if first == 0 && last == memimage.Size {
		_, err := a.runOperation(cmd, programmer.OpRead, img, false)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog, err := a.newProgrammer(ctx, false)
	if err != nil {
		return err
	}
	return explain(prog.ReadRange(ctx, img, uint16(first), last-first))
}

func (a *app) editCmd() *cobra.Command {
	var (
		in, out string
		addr    string
		values  string
	)

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Patch bytes in an image file",
		Long: `Patch bytes in an image file.

Values are separated by spaces. A token starting with ' contributes its
characters, any other token is a number (decimal, 0x hex, 0o octal, 0b binary):

  eepromctl edit --in rom.bin --addr 0x10 --values "0x42 'OK 0"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := parseAddress(addr)
			if err != nil {
				return fmt.Errorf("--addr: %w", err)
			}
			b, err := memimage.ParseValues(values)
			if err != nil {
				return err
			}

			img := memimage.New()
			if in != "" {
				if img, err = memimage.Load(in); err != nil {
					return err
				}
			}
			before := img.Clone()
			if err := img.SetBytes(start, b); err != nil {
				return err
			}

			if out == "" {
				out = in
			}
			if out == "" {
				return fmt.Errorf("--out is required when --in is not set")
			}
			if err := memimage.Save(out, img); err != nil {
				return err
			}

			for row := start &^ (memimage.RowSize - 1); row < start+len(b); row += memimage.RowSize {
				line, _ := img.FormatRow(row)
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bytes changed\n", len(before.Diff(img)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "image file to patch (default: a blank image)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: overwrite --in)")
	cmd.Flags().StringVar(&addr, "addr", "", "address of the first byte")
	cmd.Flags().StringVar(&values, "values", "", "bytes to write")
	_ = cmd.MarkFlagRequired("addr")
	_ = cmd.MarkFlagRequired("values")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an image between binary and hex records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			img, err := memimage.Load(in)
			if err != nil {
				return err
			}
			if err := memimage.Save(out, img); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s)\n",
				in, memimage.FormatFromPath(in), out, memimage.FormatFromPath(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "input file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// parseAddress accepts decimal or 0x-prefixed hex.
func parseAddress(s string) (int, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	if int(v) >= memimage.Size {
		return 0, fmt.Errorf("address 0x%04X is beyond the end of memory", v)
	}
	return int(v), nil
}
