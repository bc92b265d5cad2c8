package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/notifications"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Start = discord.SlashCommandCreate{
	Name:        "start",
	Description: "👋 Register and start tracking AliExpress prices",
}

func StartHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user := &models.User{
			UserID:    e.User().ID.String(),
			Username:  e.User().Username,
			Country:   b.DefaultCountry(),
			DateAdded: time.Now().UTC(),
		}
		if err := b.UserRepository.Save(ctx, user); err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to register you. Please try again later.")
		}

		description := fmt.Sprintf(
			"Welcome, **%s**!\n\n"+
				"Send me an AliExpress product link with `/track` and I'll watch "+
				"its price for you. When it moves, you'll get a DM.\n\n"+
				"🌍 Ship-to country: **%s** (change it with `/country`)\n"+
				"⏱️ Prices are checked every few minutes",
			e.User().Username, user.Country)

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "📦 PriceWatch",
				Description: description,
				Color:       utils.InfoColor,
			}},
			Components: []discord.ContainerComponent{
				discord.NewActionRow(
					discord.NewPrimaryButton("➕ Track a Product", notifications.ComponentAdd),
					discord.NewSecondaryButton("📋 My Products", notifications.ComponentManage),
				),
			},
		})
	}
}
