package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/subhash0x/agentnet/internal/app"
)

var (
	createOwner         string
	createSource        string
	createDestination   string
	createAmount        float64
	createAction        string
	createTriggerType   string
	createTriggerValue  float64
	createBaselinePrice float64
	createCooldown      int64

	listOwner string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage price-trigger alerts",
}

var alertsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.CreateAlertOptions{
			Owner:              createOwner,
			SourceAccount:      createSource,
			DestinationAccount: createDestination,
			Amount:             decimal.NewFromFloat(createAmount),
			Action:             createAction,
			TriggerType:        createTriggerType,
			TriggerValue:       createTriggerValue,
			BaselinePrice:      createBaselinePrice,
			CooldownSeconds:    createCooldown,
		}

		alert, err := getApp().CreateAlert(cmd.Context(), opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created alert %s (baseline %.6f USD)\n", alert.ID, alert.BaselinePrice)
		return nil
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context(), listOwner)
	},
}

var alertsDeleteCmd = &cobra.Command{
	Use:   "delete <alert-id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DeleteAlert(cmd.Context(), args[0])
	},
}

var alertsStatusCmd = &cobra.Command{
	Use:   "status <alert-id> <active|paused|completed|cancelled>",
	Short: "Set an alert's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAlertStatus(cmd.Context(), args[0], args[1])
	},
}

func init() {
	alertsCreateCmd.Flags().StringVar(&createOwner, "owner", "", "Owner identity (opaque)")
	alertsCreateCmd.Flags().StringVar(&createSource, "source", "", "Source account the alert acts on behalf of")
	alertsCreateCmd.Flags().StringVar(&createDestination, "destination", "", "Optional destination account")
	alertsCreateCmd.Flags().Float64Var(&createAmount, "amount", 0, "Trade amount (0 for notify)")
	alertsCreateCmd.Flags().StringVar(&createAction, "action", "notify", "Action: buy, sell, or notify")
	alertsCreateCmd.Flags().StringVar(&createTriggerType, "trigger", "percent_drop", "Trigger type: percent_drop or percent_rise")
	alertsCreateCmd.Flags().Float64Var(&createTriggerValue, "value", 0, "Trigger percentage (e.g. 10 for 10%)")
	alertsCreateCmd.Flags().Float64Var(&createBaselinePrice, "baseline", 0, "Baseline price in USD (captured live when omitted)")
	alertsCreateCmd.Flags().Int64Var(&createCooldown, "cooldown", 0, "Cooldown in seconds between firings (defaults to config)")
	_ = alertsCreateCmd.MarkFlagRequired("source")
	_ = alertsCreateCmd.MarkFlagRequired("value")

	alertsListCmd.Flags().StringVar(&listOwner, "owner", "", "Filter by owner")

	alertsCmd.AddCommand(alertsCreateCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsDeleteCmd)
	alertsCmd.AddCommand(alertsStatusCmd)
}
