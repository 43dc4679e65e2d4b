package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hollowshell/mnemo/internal/engine"
)

var (
	queryActor string
	queryMode  string
	queryLimit int
	queryDebug bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Build the memory block for a query, as the agent would see it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryActor, "actor", "", "acting player name")
	queryCmd.Flags().StringVar(&queryMode, "mode", "", "retrieval mode: keyword, weighted, hybrid")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "max entries")
	queryCmd.Flags().BoolVar(&queryDebug, "debug", false, "print per-entry signal breakdown")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	res := eng.BuildContext(engine.ContextRequest{
		Query: strings.Join(args, " "),
		Actor: queryActor,
		Limit: queryLimit,
		Mode:  queryMode,
		Debug: queryDebug,
	})

	if res.Text == "" {
		fmt.Println("(no matching memories)")
		return nil
	}
	fmt.Println(res.Text)
	if queryDebug {
		fmt.Println()
		for _, t := range res.Trace {
			fmt.Printf("%-36s score=%.3f lex=%.1f rel=%.3f rec=%.3f imp=%.3f dense=%.3f rrf=%.4f injected=%v\n",
				t.ID, t.Score, t.Lexical, t.Relevance, t.Recency, t.Importance, t.Dense, t.RRF, t.Injected)
		}
	}
	return nil
}
