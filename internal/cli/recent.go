package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	recentActor string
	recentLimit int
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently updated memory entries",
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().StringVar(&recentActor, "actor", "", "acting player name")
	recentCmd.Flags().IntVar(&recentLimit, "limit", 10, "max entries")
}

func runRecent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	entries := eng.Store.Recent(recentLimit, recentActor)
	if len(entries) == 0 {
		fmt.Println("(no memories)")
		return nil
	}
	for _, e := range entries {
		updated := time.UnixMilli(e.UpdatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%s  [%s x%d]  %s\n", updated, e.Scope, e.Count, e.Text)
	}
	return nil
}
