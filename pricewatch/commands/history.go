package commands

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var History = discord.SlashCommandCreate{
	Name:        "history",
	Description: "📊 Show the price history of a tracked product",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "product",
			Description: "Product id (from /products) or a title to match",
			Required:    true,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "months",
			Description: "Only show changes from the last N months",
			Required:    false,
		},
	},
}

const historyPerPage = 10

func HistoryHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		query := strings.TrimSpace(data.String("product"))
		months := data.Int("months")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		userID := e.User().ID.String()
		productID, title, err := resolveProduct(ctx, b, userID, query)
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to look up your products. Please try again later.")
		}
		if productID == "" {
			return utils.EH.CreateErrorEmbed(e,
				fmt.Sprintf("No tracked product matches **%s**.", query))
		}

		records, err := b.HistoryRepository.GetByProduct(ctx, userID, productID, months)
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to load the price history. Please try again later.")
		}
		if len(records) == 0 {
			return utils.EH.CreateInfoEmbed(e,
				fmt.Sprintf("No recorded price changes for **%s** yet.", utils.TruncateString(title, 80)))
		}

		totalPages := int(math.Ceil(float64(len(records)) / float64(historyPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * historyPerPage
				end := start + historyPerPage
				if end > len(records) {
					end = len(records)
				}

				embed.
					SetTitle("📊 Price History").
					SetDescription(buildHistoryList(title, records[start:end])).
					SetColor(utils.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d • Changes: %d", page+1, totalPages, len(records)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func buildHistoryList(title string, records []*models.PriceHistory) string {
	var description strings.Builder
	description.WriteString(fmt.Sprintf("**%s**\n\n", utils.TruncateString(title, 100)))
	for _, record := range records {
		arrow := "📈"
		if record.ChangeAmount < 0 {
			arrow = "📉"
		}
		description.WriteString(fmt.Sprintf("%s <t:%d:d> %s → %s (%+.1f%%)\n",
			arrow,
			record.Timestamp.Unix(),
			utils.FormatPrice(record.OldPrice, record.Currency),
			utils.FormatPrice(record.NewPrice, record.Currency),
			record.ChangePercent))
	}
	return description.String()
}
