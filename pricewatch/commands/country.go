package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Country = discord.SlashCommandCreate{
	Name:        "country",
	Description: "🌍 Set your ship-to country for price checks",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "code",
			Description: "Two-letter country code, e.g. US, DE, BR",
			Required:    true,
		},
	},
}

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

func CountryHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		code := strings.ToUpper(strings.TrimSpace(e.SlashCommandInteractionData().String("code")))
		if !countryCodePattern.MatchString(code) {
			return utils.EH.CreateErrorEmbed(e,
				fmt.Sprintf("**%s** is not a valid two-letter country code.", code))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		userID := e.User().ID.String()
		if err := b.UserRepository.SetCountry(ctx, userID, code); err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to update your country. Please try again later.")
		}

		// Tracked products carry their own locale so the next cycle fetches
		// prices for the new destination.
		updated, err := b.ProductRepository.UpdateCountryForUser(ctx, userID, code)
		if err != nil {
			return utils.EH.CreateErrorEmbed(e, "Failed to update your products. Please try again later.")
		}

		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf(
			"✅ Ship-to country set to **%s**. %d tracked product(s) will use it from the next check.",
			code, updated))
	}
}
