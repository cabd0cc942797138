package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/recallapp/recall/internal/config"
	"github.com/recallapp/recall/internal/match"
	"github.com/spf13/cobra"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage known persons",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known persons",
	RunE:  runPeopleList,
}

var peopleAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new person",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPeopleAdd,
}

var peopleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a person and their embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleRemove,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleAddCmd)
	peopleCmd.AddCommand(peopleRemoveCmd)
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	persons, err := st.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("listing persons: %w", err)
	}
	if len(persons) == 0 {
		fmt.Println("No persons yet")
		return nil
	}

	for _, p := range persons {
		fmt.Printf("%s  %-24s %d embedding(s)\n", p.ID, p.Name, len(p.Embeddings))
	}
	fmt.Printf("\n%d person(s)\n", len(persons))
	return nil
}

func runPeopleAdd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	persons, err := st.ListPersons(ctx)
	if err != nil {
		return fmt.Errorf("listing persons: %w", err)
	}
	if existing := match.FindPersonByName(persons, name); existing != nil {
		fmt.Printf("%s already exists (%s)\n", existing.Name, existing.ID)
		return nil
	}

	person, err := st.CreatePerson(ctx, name)
	if err != nil {
		return fmt.Errorf("creating person: %w", err)
	}
	fmt.Printf("Created %s (%s)\n", person.Name, person.ID)
	return nil
}

func runPeopleRemove(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid person id %q", args[0])
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.DeletePerson(ctx, id); err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	fmt.Println("Deleted")
	return nil
}
