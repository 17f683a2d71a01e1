package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/San4ouzs/Flight-deals-eu/pkg/bot"
	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Answer /deals requests in Telegram",
	RunE: func(cmd *cobra.Command, _ []string) error {
		token := cfg.Telegram.Token
		if token == "" {
			token = os.Getenv("TELEGRAM_BOT_TOKEN")
		}
		api, err := bot.Connect(token)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		b := bot.New(deals.NewDetector(st, logger), api, bot.Options{
			DefaultThreshold: cfg.Deals.Threshold,
			DefaultLimit:     cfg.Deals.Limit,
			MaxLines:         cfg.Telegram.MaxLines,
			AllowedChatID:    cfg.Telegram.AllowedChatID,
		}, logger)
		return b.Run(ctx, api)
	},
}
