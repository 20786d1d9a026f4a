package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/homelead/distributor/internal/db"
	"github.com/homelead/distributor/internal/models"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage broker agent profiles",
	}

	cmd.AddCommand(newAgentAddCmd())
	cmd.AddCommand(newAgentListCmd())
	return cmd
}

func newAgentAddCmd() *cobra.Command {
	var (
		configPath    string
		rating        float64
		areas         []string
		developers    []string
		propertyTypes []string
	)

	cmd := &cobra.Command{
		Use:   "add <name> <phone>",
		Short: "Register an agent",
		Long:  "Registers an agent eligible to receive work items. Empty coverage flags mean the agent takes anything.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentAdd(cmd, configPath, args[0], args[1], rating, areas, developers, propertyTypes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	cmd.Flags().Float64Var(&rating, "rating", 0, "performance rating")
	cmd.Flags().StringSliceVar(&areas, "area", nil, "covered area (repeatable)")
	cmd.Flags().StringSliceVar(&developers, "developer", nil, "covered developer (repeatable)")
	cmd.Flags().StringSliceVar(&propertyTypes, "property-type", nil, "covered property type (repeatable)")
	return cmd
}

func runAgentAdd(cmd *cobra.Command, configPath, name, phone string, rating float64, areas, developers, propertyTypes []string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	agent := models.Agent{
		Name:          name,
		Phone:         phone,
		Active:        true,
		Rating:        rating,
		Areas:         encodeList(areas),
		Developers:    encodeList(developers),
		PropertyTypes: encodeList(propertyTypes),
	}
	if err := gormDB.Create(&agent).Error; err != nil {
		if db.IsDuplicateEntry(err) {
			return fmt.Errorf("an agent with phone %s already exists", phone)
		}
		return fmt.Errorf("create agent: %w", err)
	}
	fmt.Fprintf(out, "Agent %d (%s) registered\n", agent.ID, agent.Name)
	return nil
}

func newAgentListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var agents []models.Agent
			if err := gormDB.Order("id").Find(&agents).Error; err != nil {
				return fmt.Errorf("list agents: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents registered")
				return nil
			}
			fmt.Fprintf(out, "%-4s %-20s %-18s %-7s %-6s %-5s %s\n", "ID", "NAME", "PHONE", "RATING", "OPEN", "ON", "AREAS")
			for _, a := range agents {
				on := "no"
				if a.Active {
					on = "yes"
				}
				fmt.Fprintf(out, "%-4d %-20s %-18s %-7.1f %-6d %-5s %s\n",
					a.ID, a.Name, a.Phone, a.Rating, a.OpenAssignments, on, strings.Join(a.AreaList(), ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	return cmd
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(items)
	return string(data)
}
