package commands

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"bicdash/internal/export"
)

func labelCmd(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "label [description...]",
		Short: "Print the short label of rule descriptions",
		Long:  "Print the short label of each description argument, or of each line of standard input when no argument is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.normalizer()
			if err != nil {
				return err
			}
			if list {
				t := export.Table{Name: "Rules", Header: []string{"prefix", "label"}}
				for _, r := range n.Rules() {
					t.Rows = append(t.Rows, []any{r.Prefix, r.Label})
				}
				return export.WriteText(cmd.OutOrStdout(), t)
			}

			if len(args) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
				for sc.Scan() {
					if line := strings.TrimSpace(sc.Text()); line != "" {
						args = append(args, line)
					}
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			w := cmd.OutOrStdout()
			for _, raw := range args {
				if _, err := w.Write([]byte(n.Label(raw) + "\n")); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the label rules in match order")
	return cmd
}
