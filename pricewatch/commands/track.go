package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/aliexpress"
	"github.com/hadef-dev/pricewatch/pricewatch/database/models"
	"github.com/hadef-dev/pricewatch/pricewatch/monitor"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Track = discord.SlashCommandCreate{
	Name:        "track",
	Description: "🔗 Track an AliExpress product link",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "link",
			Description: "Product link (full or shortened)",
			Required:    true,
		},
	},
}

const trackTimeout = 30 * time.Second

func TrackHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		link := strings.TrimSpace(e.SlashCommandInteractionData().String("link"))

		if err := e.DeferCreateMessage(false); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()

		userID := e.User().ID.String()
		country, err := b.UserRepository.GetCountry(ctx, userID)
		if err != nil || country == "" {
			country = b.DefaultCountry()
		}

		if aliexpress.IsShortenedURL(link) {
			link = b.API.ResolveShortLink(ctx, link)
		}

		productID := aliexpress.ExtractProductID(link)
		if productID == "" {
			return utils.EH.UpdateInteractionResponse(e, "Invalid Link",
				"Could not find a product id in that link. Paste the full AliExpress product URL.")
		}

		snapshot, err := b.API.FetchDetails(ctx, productID, country)
		if err != nil {
			return utils.EH.UpdateInteractionResponse(e, "Lookup Failed", fetchErrorMessage(err))
		}

		now := time.Now().UTC()
		if err := b.UserRepository.Save(ctx, &models.User{
			UserID:    userID,
			Username:  e.User().Username,
			Country:   country,
			DateAdded: now,
		}); err != nil {
			return utils.EH.UpdateInteractionResponse(e, "Tracking Failed",
				"Could not save your profile. Please try again later.")
		}

		product := &models.Product{
			UserID:        userID,
			ProductID:     snapshot.ProductID,
			ProductURL:    snapshot.ProductURL,
			Title:         snapshot.Title,
			CurrentPrice:  snapshot.Price,
			OriginalPrice: snapshot.OriginalPrice,
			Currency:      snapshot.Currency,
			ImageURL:      snapshot.ImageURL,
			Country:       country,
			DateAdded:     now,
		}
		if err := b.ProductRepository.Upsert(ctx, product); err != nil {
			return utils.EH.UpdateInteractionResponse(e, "Tracking Failed",
				"Could not save the product. Please try again later.")
		}

		affiliateLink := b.API.GenerateAffiliateLink(ctx, snapshot.ProductURL, country)

		description := fmt.Sprintf("**%s**\n\n💵 **Price:** %s\n",
			utils.TruncateString(snapshot.Title, 120),
			utils.FormatPrice(snapshot.Price, snapshot.Currency))
		if discount := monitor.DiscountPercent(snapshot.Price, snapshot.OriginalPrice); discount > 0 {
			description += fmt.Sprintf("🏷️ **List Price:** ~~%s~~ (-%.0f%%)\n",
				utils.FormatPrice(snapshot.OriginalPrice, snapshot.Currency), discount)
		}
		description += fmt.Sprintf("🌍 **Ship to:** %s\n\nI'll DM you when the price changes.", country)

		embed := discord.NewEmbedBuilder().
			SetTitle("✅ Now Tracking").
			SetDescription(description).
			SetColor(utils.SuccessColor)
		if snapshot.ImageURL != "" {
			embed.SetThumbnail(snapshot.ImageURL)
		}

		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{embed.Build()},
			Components: &[]discord.ContainerComponent{
				discord.NewActionRow(
					discord.NewLinkButton("🛒 Buy Now", affiliateLink),
					discord.NewDangerButton("🗑️ Untrack", "/delete/"+snapshot.ProductID),
				),
			},
		})
		return err
	}
}

func fetchErrorMessage(err error) string {
	switch {
	case aliexpress.IsKind(err, aliexpress.KindNotFound):
		return "That product does not exist or is no longer available."
	case aliexpress.IsKind(err, aliexpress.KindNoPrice):
		return "The product has no price right now. Try again later."
	case aliexpress.IsKind(err, aliexpress.KindRateLimited):
		return "The marketplace is rate limiting us. Try again in a minute."
	case aliexpress.IsKind(err, aliexpress.KindTimeout):
		return "The marketplace took too long to answer. Try again later."
	default:
		return "Could not fetch product details. Try again later."
	}
}
