package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-sensor/internal/models"
	"github.com/telhawk-systems/telhawk-sensor/internal/rules"
	"github.com/telhawk-systems/telhawk-sensor/internal/service"
)

func newRulesCommand(a *app) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the custom Suricata rules file",
		Long: `Inspect and edit the custom rules file directly. Writes take the same
file lock as the running agent, so these commands are safe while it serves.`,
	}

	rulesCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.store().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}
			return a.printer.Render(list, func(w io.Writer) {
				if list.Count == 0 {
					a.printer.Info("No rules found in %s", a.cfg.RulesFilePath())
					return
				}
				table := NewTable("ID", "ACTION", "SID", "MSG")
				for _, rule := range list.Rules {
					table.AddRow(rule.ID, rule.Action, rule.SID, rule.Msg)
				}
				table.Render(w)
			})
		},
	})

	rulesCmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Show one rule by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := a.store().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}
			return a.printer.Render(rule, func(w io.Writer) {
				printRule(w, rule)
			})
		},
	})

	var noReload bool
	addCmd := &cobra.Command{
		Use:   "add [rule]",
		Short: "Validate and append a rule",
		Long:  "Validate a rule and append it to the custom rules file. The rule text may be passed as one quoted argument or as several words.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := a.ruleService(!noReload).AddRule(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to add rule: %w", err)
			}
			if a.printer.Structured() {
				return a.printer.Render(rule, nil)
			}
			a.printer.Success("Rule added: %s", rule.ID)
			return nil
		},
	}
	addCmd.Flags().BoolVar(&noReload, "no-reload", false, "do not ask Suricata to reload rules")
	// Rule text contains "->", which pflag would otherwise read as shorthand flags.
	addCmd.Flags().SetInterspersed(false)
	rulesCmd.AddCommand(addCmd)

	deleteCmd := &cobra.Command{
		Use:     "delete [id]",
		Aliases: []string{"rm"},
		Short:   "Delete every rule with the given ID",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.ruleService(!noReload).DeleteRule(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}
			if a.printer.Structured() {
				return a.printer.Render(map[string]any{"id": args[0], "removed": removed}, nil)
			}
			a.printer.Success("Removed %d rule(s) with ID %s", removed, args[0])
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&noReload, "no-reload", false, "do not ask Suricata to reload rules")
	rulesCmd.AddCommand(deleteCmd)

	validateCmd := &cobra.Command{
		Use:   "validate [rule]",
		Short: "Check rule syntax without writing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rules.Validate(strings.Join(args, " ")); err != nil {
				return err
			}
			a.printer.Success("Rule is valid")
			return nil
		},
	}
	validateCmd.Flags().SetInterspersed(false)
	rulesCmd.AddCommand(validateCmd)

	idCmd := &cobra.Command{
		Use:   "id [rule]",
		Short: "Print the ID a rule would be stored under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := rules.Normalize(strings.Join(args, " "))
			rule := rules.Parse(content)
			return a.printer.Render(rule, func(w io.Writer) {
				fmt.Fprintln(w, rule.ID)
			})
		},
	}
	idCmd.Flags().SetInterspersed(false)
	rulesCmd.AddCommand(idCmd)

	return rulesCmd
}

func (a *app) ruleService(reload bool) *service.RuleService {
	var reloader service.Reloader
	if reload && a.reloadsOnChange() {
		reloader = a.controller()
	}
	return service.NewRuleService(a.store(), reloader, a.logger)
}

func printRule(w io.Writer, rule models.Rule) {
	fmt.Fprintf(w, "ID:      %s\n", rule.ID)
	fmt.Fprintf(w, "Action:  %s\n", rule.Action)
	fmt.Fprintf(w, "SID:     %s\n", rule.SID)
	fmt.Fprintf(w, "Msg:     %s\n", rule.Msg)
	fmt.Fprintf(w, "Content: %s\n", rule.Content)
}
