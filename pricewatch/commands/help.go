package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Help = discord.SlashCommandCreate{
	Name:        "help",
	Description: "❓ How to use the price tracker",
}

func HelpHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "❓ PriceWatch Help",
				Description: "**Getting started**\n" +
					"`/start` — register and pick a ship-to country\n" +
					"`/track <link>` — track an AliExpress product (short links work too)\n\n" +
					"**Managing your list**\n" +
					"`/products [query]` — list tracked products, optionally filtered by title\n" +
					"`/untrack <product>` — stop tracking one product\n" +
					"`/history <product> [months]` — recorded price changes\n" +
					"`/country <code>` — change where prices are quoted for\n\n" +
					"**Notifications**\n" +
					"Price changes arrive as DMs, so keep DMs from this server open. " +
					"Every month or so I'll ask whether you still want your list " +
					"monitored; if you don't answer within a few days the list is cleared.",
				Color: utils.InfoColor,
			}},
		})
	}
}
