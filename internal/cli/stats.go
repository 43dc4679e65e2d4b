package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory effectiveness statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	st := eng.Store.GetStats()
	fmt.Printf("entries:        %d\n", st.TotalEntries)
	fmt.Printf("times used:     %d\n", st.TotalUsed)
	fmt.Printf("helpful:        %d\n", st.TotalHelpful)
	fmt.Printf("unhelpful:      %d\n", st.TotalUnhelpful)
	fmt.Printf("effectiveness:  %.1f%%\n", st.EffectivenessRate*100)
	return nil
}
