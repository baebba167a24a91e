package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/spf13/cobra"
)

const compareLongDesc string = `Compare two frequency lists.

Each file holds one type per line: the type, a tab, and its count.
Blank lines and lines starting with # are ignored. Types missing from one
file are counted as zero there.

Examples:
  rtdctl compare 2019.tsv 2020.tsv
  rtdctl compare 2019.tsv 2020.tsv --alpha inf --top 10 --pretty`

const compareShortDesc string = "Compare two frequency lists"

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <file1> <file2>",
		Short: compareShortDesc,
		Long:  compareLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			top, _ := cmd.Flags().GetInt("top")
			return runCompare(cmd, args[0], args[1], top)
		},
	}
	cmd.Flags().Int("top", 30, "Number of shift entries to report (0 for all)")
	return cmd
}

func runCompare(cmd *cobra.Command, path1, path2 string, top int) error {
	svc, err := newService(cmd)
	if err != nil {
		return err
	}
	sys1, err := readElementsFile(path1)
	if err != nil {
		return err
	}
	sys2, err := readElementsFile(path2)
	if err != nil {
		return err
	}
	if top == 0 {
		top = len(sys1) + len(sys2)
	}
	report, err := svc.Compare(cmd.Context(), comparison.Request{
		Label1:  path1,
		Label2:  path2,
		System1: sys1,
		System2: sys2,
		Top:     top,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd, cmd.OutOrStdout(), report)
}

func readElementsFile(path string) ([]mixed.Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	elems, err := parseElements(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return elems, nil
}

// parseElements reads "type<TAB>count" lines.
func parseElements(r io.Reader) ([]mixed.Element, error) {
	var elems []mixed.Element
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		typ, countStr, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("line %d: expected type<TAB>count", line)
		}
		count, err := strconv.ParseFloat(strings.TrimSpace(countStr), 64)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("line %d: invalid count %q", line, countStr)
		}
		elems = append(elems, mixed.Element{Type: typ, Count: count})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return elems, nil
}
