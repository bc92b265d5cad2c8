package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/hadef-dev/pricewatch/pricewatch"
	"github.com/hadef-dev/pricewatch/pricewatch/utils"
)

var Untrack = discord.SlashCommandCreate{
	Name:        "untrack",
	Description: "🗑️ Stop tracking a product",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "product",
			Description: "Product id (from /products) or a title to match",
			Required:    true,
		},
	},
}

func UntrackHandler(b *pricewatch.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		query := strings.TrimSpace(e.SlashCommandInteractionData().String("product"))

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

		deleted, err := removeProduct(ctx, b, userID, productID)
		if err != nil || !deleted {
			return utils.EH.CreateErrorEmbed(e, "Failed to remove the product. Please try again later.")
		}

		return utils.EH.CreateSuccessEmbed(e,
			fmt.Sprintf("✅ Stopped tracking **%s**.", utils.TruncateString(title, 80)))
	}
}

// removeProduct deletes a tracked product and cleans up its mirrored image.
// The image delete is best-effort; the bucket object just goes stale if it
// fails.
func removeProduct(ctx context.Context, b *pricewatch.Bot, userID, productID string) (bool, error) {
	deleted, err := b.ProductRepository.Delete(ctx, userID, productID)
	if err != nil || !deleted {
		return deleted, err
	}

	if b.ImageService != nil {
		if err := b.ImageService.DeleteProductImage(ctx, productID); err != nil {
			slog.Debug("Failed to remove mirrored image",
				slog.String("type", "sys"),
				slog.String("product_id", productID),
				slog.Any("error", err))
		}
	}
	return true, nil
}

// resolveProduct accepts either an exact product id or a fuzzy title query and
// returns the matching id and title, or empty strings when nothing matches.
func resolveProduct(ctx context.Context, b *pricewatch.Bot, userID, query string) (string, string, error) {
	if product, err := b.ProductRepository.GetByID(ctx, userID, query); err == nil && product != nil {
		return product.ProductID, product.Title, nil
	}

	products, err := b.ProductRepository.GetByUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	match := b.SearchService.SearchOne(products, query)
	if match == nil {
		return "", "", nil
	}
	return match.ProductID, match.Title, nil
}

// UntrackButtonHandler handles the delete button attached to tracking
// confirmations and product listings. The product id rides in the custom id.
func UntrackButtonHandler(b *pricewatch.Bot) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		productID := strings.TrimPrefix(e.Data.CustomID(), "/delete/")
		if productID == "" {
			return utils.EH.CreateEphemeralError(e, "This button is missing its product id.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		deleted, err := removeProduct(ctx, b, e.User().ID.String(), productID)
		if err != nil {
			return utils.EH.CreateEphemeralError(e, "Failed to remove the product. Please try again later.")
		}
		if !deleted {
			return utils.EH.CreateEphemeralError(e, "That product is not being tracked anymore.")
		}

		return utils.EH.CreateEphemeralSuccess(e, "Stopped tracking the product.")
	}
}
