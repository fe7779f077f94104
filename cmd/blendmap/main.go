// Command blendmap maps a mesh's blend-shape names onto expression ids.
//
//	blendmap map face.yml [--allow-duplicates] [--json]
//
// The input file lists the shapes and the candidate expressions:
//
//	shapes: [mouthSmile_L, mouthSmile_R, browDown_L]
//	expressions:
//	  - {name: MouthSmileLeft, id: 1}
//	  - {name: MouthSmileRight, id: 2}
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/debugconsole/internal/blendshape"
)

var version = "dev"

// mappingFile is the on-disk request shape.
type mappingFile struct {
	Shapes      []string               `yaml:"shapes"`
	Expressions []blendshape.Candidate `yaml:"expressions"`
}

// mappingRow is one line of output.
type mappingRow struct {
	Shape      string                  `json:"shape"`
	ID         blendshape.ExpressionID `json:"id"`
	Expression string                  `json:"expression,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blendmap",
		Short:         "Auto-map blend shapes to facial expressions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMapCmd())
	return root
}

func newMapCmd() *cobra.Command {
	var allowDuplicates bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "map FILE",
		Short: "Print the expression id chosen for every blend shape",
		Long: `Reads a YAML file with "shapes" and "expressions" and prints, in shape
order, the best-matching expression id for each shape (-1 when none matches).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readMappingFile(args[0])
			if err != nil {
				return err
			}
			rows := buildMapping(req, allowDuplicates)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			return writeTable(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().BoolVar(&allowDuplicates, "allow-duplicates", false, "let several shapes share one expression")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func readMappingFile(path string) (mappingFile, error) {
	var req mappingFile
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(req.Shapes) == 0 {
		return req, fmt.Errorf("%s: no shapes listed", path)
	}
	return req, nil
}

func buildMapping(req mappingFile, allowDuplicates bool) []mappingRow {
	names := make(map[blendshape.ExpressionID]string, len(req.Expressions))
	for _, c := range req.Expressions {
		if _, seen := names[c.ID]; !seen {
			names[c.ID] = c.Name
		}
	}

	ids := blendshape.AutoGenerateMapping(req.Shapes, req.Expressions, allowDuplicates)
	rows := make([]mappingRow, len(ids))
	for i, id := range ids {
		rows[i] = mappingRow{Shape: req.Shapes[i], ID: id}
		if id != blendshape.Invalid {
			rows[i].Expression = names[id]
		}
	}
	return rows
}

func writeJSON(w io.Writer, rows []mappingRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeTable(w io.Writer, rows []mappingRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHAPE\tID\tEXPRESSION")
	for _, r := range rows {
		expr := r.Expression
		if r.ID == blendshape.Invalid {
			expr = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Shape, r.ID, expr)
	}
	return tw.Flush()
}
