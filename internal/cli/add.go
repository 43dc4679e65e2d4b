package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hollowshell/mnemo/internal/store"
)

var (
	addAuthor   string
	addScope    string
	addTags     []string
	addTriggers []string
)

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Store a memory entry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addAuthor, "author", "", "who said it")
	addCmd.Flags().StringVar(&addScope, "scope", "", "player or global (default inferred)")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tags")
	addCmd.Flags().StringSliceVar(&addTriggers, "trigger", nil, "trigger words")
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	entry, created := eng.AddEntry(store.AddInput{
		Text:     strings.Join(args, " "),
		Author:   addAuthor,
		Source:   "cli",
		Scope:    addScope,
		Tags:     addTags,
		Triggers: addTriggers,
	})
	if entry == nil {
		return fmt.Errorf("nothing to store")
	}
	if created {
		fmt.Printf("stored %s [%s]\n", entry.ID, entry.Scope)
	} else {
		fmt.Printf("reinforced %s (count=%d)\n", entry.ID, entry.Count)
	}
	return nil
}
