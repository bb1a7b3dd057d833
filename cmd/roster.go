package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kozaktomas/attendance/internal/attendance"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print the roster of a course",
	RunE:  runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)

	rosterCmd.Flags().String("course", "", "Course code (required)")
	_ = rosterCmd.MarkFlagRequired("course")
}

func runRoster(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	courseID := mustGetString(cmd, "course")

	api, err := newBackend(cfg)
	if err != nil {
		return err
	}

	roster, err := api.LoadRoster(ctx, courseID)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}

	fmt.Println(renderStudents("Roster "+courseID, roster.Students()))
	fmt.Printf("Total: %d students\n", roster.Len())
	return nil
}

func renderStudents(title string, students []attendance.Student) string {
	rows := make([][]string, 0, len(students))
	for i, st := range students {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(st.ID), st.Name})
	}
	return renderTable(title, []string{"#", "ID", "Name"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}
