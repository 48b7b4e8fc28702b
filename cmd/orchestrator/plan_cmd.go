package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"orchestrator/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate, validate, or describe plans",
}

var planRequirement string

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Ask the planner for a plan covering a requirement",
	RunE:  runPlanGenerate,
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	if planRequirement == "" {
		return fmt.Errorf("--requirement is required")
	}
	a, err := newApp(configPath, jsonOutput)
	if err != nil {
		return err
	}

	p, err := a.Planner.GeneratePlan(cmd.Context(), planRequirement)
	if err != nil {
		return err
	}
	data, err := plan.Canonical(p)
	if err != nil {
		return err
	}
	if jsonOutput {
		fmt.Println(string(data))
	} else {
		printJSON(data)
	}
	return nil
}

var planValidateCmd = &cobra.Command{
	Use:   "validate [file.json]",
	Short: "Validate a hand-edited plan file against the schema and policy rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	p, err := plan.Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("valid: %q (%d steps)\n", p.Name, p.StepCount())
	return nil
}

var planSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the plan document's JSON Schema",
	RunE:  runPlanSchema,
}

func runPlanSchema(cmd *cobra.Command, args []string) error {
	data, err := plan.DocumentationSchema()
	if err != nil {
		return err
	}
	printJSON(data)
	return nil
}

func init() {
	planGenerateCmd.Flags().StringVar(&planRequirement, "requirement", "", "Free-text description of the work to plan")

	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planValidateCmd)
	planCmd.AddCommand(planSchemaCmd)
}
